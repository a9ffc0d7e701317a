package main

import (
	"github.com/spf13/cobra"

	"github.com/aircast-dev/aircast/pkg/control"
)

func muteCmd() *cobra.Command {
	var (
		group  bool
		unmute bool
	)

	cmd := &cobra.Command{
		Use:   "mute <client|group>",
		Short: "Mute or unmute a client or group",
		Long: `Mute a client, or with --group a whole group.

Examples:
  aircast mute kitchen
  aircast mute --group --off Downstairs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(server *control.Server) error {
				if group {
					g, err := findGroup(server, args[0])
					if err != nil {
						return err
					}
					return g.SetMuted(cmd.Context(), !unmute)
				}
				client, err := findClient(server, args[0])
				if err != nil {
					return err
				}
				return client.SetMuted(cmd.Context(), !unmute)
			})
		},
	}

	cmd.Flags().BoolVarP(&group, "group", "g", false, "Treat the target as a group")
	cmd.Flags().BoolVar(&unmute, "off", false, "Unmute instead of mute")

	return cmd
}
