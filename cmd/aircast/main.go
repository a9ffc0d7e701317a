package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aircast-dev/aircast/pkg/control"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global connection flags shared by every subcommand.
var (
	flagHost      string
	flagPort      int
	flagWebSocket bool
	flagVerbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aircast",
		Short: "Control a multi-room audio coordinator",
		Long: `aircast talks to a multi-room audio coordinator over its JSON-RPC
control interface.

It mirrors the coordinator's groups, clients, and streams, and lets
you inspect and change them from the command line:

  aircast status
  aircast volume <client-id> 75
  aircast mute group <group-id>
  aircast watch --listen :9090`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flagHost, "host", "H", "localhost", "Coordinator host")
	rootCmd.PersistentFlags().IntVarP(&flagPort, "port", "p", 0, "Control port (default 1705, or 1780 with --websocket)")
	rootCmd.PersistentFlags().BoolVarP(&flagWebSocket, "websocket", "w", false, "Connect over websocket instead of raw TCP")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		statusCmd(),
		volumeCmd(),
		muteCmd(),
		streamCmd(),
		watchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// sessionConfig builds a control config from the global flags.
func sessionConfig() *control.Config {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	config := control.DefaultConfig(flagHost)
	config.Logger = logger
	if flagWebSocket {
		config.Binding = control.BindingWebSocket
	}
	if flagPort != 0 {
		config.Port = flagPort
	}
	return config
}

// withSession connects, runs fn, and tears the session down.
func withSession(ctx context.Context, fn func(*control.Server) error) error {
	server := control.NewServer(sessionConfig())
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()
	return fn(server)
}
