package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/aircast-dev/aircast/pkg/control"
)

func versionCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print version and build information, and with --remote the connected coordinator's versions too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("aircast %s (commit %s, built %s, %s %s/%s)\n",
				version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			if !remote {
				return nil
			}
			return withSession(cmd.Context(), func(server *control.Server) error {
				rpcVersion, err := server.RPCVersion(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("coordinator %s\n", server.Version())
				fmt.Printf("rpc %s\n", rpcVersion)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "Also query the coordinator")

	return cmd
}
