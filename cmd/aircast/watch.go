package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aircast-dev/aircast/pkg/control"
)

func watchCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow coordinator changes and serve state over HTTP",
		Long: `Stay connected to the coordinator, log every change, and expose
the mirrored state over HTTP.

The session reconnects automatically when the coordinator drops.

Endpoints:
  /state    current groups, clients, and streams as JSON
  /metrics  Prometheus metrics
  /healthz  liveness (200 while the watcher runs)

Examples:
  aircast watch
  aircast watch --listen :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(listen)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", ":9090", "HTTP listen address")

	return cmd
}

func runWatch(listen string) error {
	config := sessionConfig()
	config.Reconnect = true
	config.Metrics = control.NewMetrics()
	logger := config.Logger

	server := control.NewServer(config)
	server.SetOnConnect(func() {
		logger.Info("connected", "version", server.Version())
		watchEntities(server, logger)
	})
	server.SetOnDisconnect(func(err error) {
		logger.Warn("disconnected", "error", err)
	})
	server.SetOnUpdate(func() {
		logger.Info("coordinator pushed full update")
		watchEntities(server, logger)
	})
	server.SetOnNewClient(func(c *control.Client) {
		logger.Info("new client", "client", c.FriendlyName())
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(buildState(server)); err != nil {
			logger.Error("encode state", "error", err)
		}
	})

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving", "addr", listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	fmt.Println("\nshutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// watchEntities registers change observers on every mirrored entity.
// Synchronize keeps entity identity, so re-registering after each connect
// also covers entities that appeared since the last one.
func watchEntities(server *control.Server, logger *slog.Logger) {
	for _, client := range server.Clients() {
		client.SetCallback(func(c *control.Client) {
			logger.Info("client changed",
				"client", c.FriendlyName(),
				"connected", c.Connected(),
				"volume", c.Volume(),
				"muted", c.Muted())
		})
	}
	for _, group := range server.Groups() {
		group.SetCallback(func(g *control.Group) {
			logger.Info("group changed",
				"group", g.FriendlyName(),
				"stream", g.Stream(),
				"muted", g.Muted())
		})
	}
	for _, stream := range server.Streams() {
		stream.SetCallback(func(s *control.Stream) {
			logger.Info("stream changed",
				"stream", s.FriendlyName(),
				"status", s.Status())
		})
	}
}

// buildState renders the mirror as the JSON shape served on /state.
func buildState(server *control.Server) map[string]any {
	groups := make([]map[string]any, 0)
	for _, g := range server.Groups() {
		groups = append(groups, map[string]any{
			"id":      g.Identifier(),
			"name":    g.FriendlyName(),
			"stream":  g.Stream(),
			"muted":   g.Muted(),
			"volume":  g.Volume(),
			"clients": g.Clients(),
		})
	}
	clients := make([]map[string]any, 0)
	for _, c := range server.Clients() {
		clients = append(clients, map[string]any{
			"id":        c.Identifier(),
			"name":      c.FriendlyName(),
			"connected": c.Connected(),
			"volume":    c.Volume(),
			"muted":     c.Muted(),
			"latency":   c.Latency(),
		})
	}
	streams := make([]map[string]any, 0)
	for _, s := range server.Streams() {
		streams = append(streams, map[string]any{
			"id":       s.Identifier(),
			"name":     s.FriendlyName(),
			"status":   s.Status(),
			"uri":      s.URI(),
			"metadata": s.Metadata(),
		})
	}
	return map[string]any{
		"version": server.Version(),
		"groups":  groups,
		"clients": clients,
		"streams": streams,
	}
}
