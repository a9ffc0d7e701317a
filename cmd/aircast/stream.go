package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aircast-dev/aircast/pkg/control"
)

func streamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Manage streams and group assignments",
	}
	cmd.AddCommand(
		streamSetCmd(),
		streamControlCmd(),
		streamAddCmd(),
		streamRemoveCmd(),
	)
	return cmd
}

func streamSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <group> <stream-id>",
		Short: "Bind a group to a stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(server *control.Server) error {
				group, err := findGroup(server, args[0])
				if err != nil {
					return err
				}
				return group.SetStream(cmd.Context(), args[1])
			})
		},
	}
}

func streamControlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "control <stream-id> <command>",
		Short: "Send a playback command (play, pause, next, previous, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(server *control.Server) error {
				_, err := server.StreamControl(cmd.Context(), args[0], args[1], nil)
				return err
			})
		},
	}
}

func streamAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <uri>",
		Short: "Register a new stream by URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(server *control.Server) error {
				result, err := server.StreamAddStream(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s\n", result)
				return nil
			})
		},
	}
}

func streamRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <stream-id>",
		Short: "Remove a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(server *control.Server) error {
				_, err := server.StreamRemoveStream(cmd.Context(), args[0])
				return err
			})
		},
	}
}
