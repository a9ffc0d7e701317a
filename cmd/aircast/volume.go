package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aircast-dev/aircast/pkg/control"
)

func volumeCmd() *cobra.Command {
	var group bool

	cmd := &cobra.Command{
		Use:   "volume <client|group> <percent>",
		Short: "Set a client's or group's volume",
		Long: `Set a client's volume, or with --group a whole group's volume.

Group volume is spread across the members in proportion to their
headroom when raising and their current level when lowering.

Examples:
  aircast volume kitchen 75
  aircast volume --group Downstairs 40`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			percent, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("percent must be a number: %v", err)
			}
			return withSession(cmd.Context(), func(server *control.Server) error {
				if group {
					g, err := findGroup(server, args[0])
					if err != nil {
						return err
					}
					return g.SetVolume(cmd.Context(), percent)
				}
				client, err := findClient(server, args[0])
				if err != nil {
					return err
				}
				return client.SetVolume(cmd.Context(), percent)
			})
		},
	}

	cmd.Flags().BoolVarP(&group, "group", "g", false, "Treat the target as a group")

	return cmd
}
