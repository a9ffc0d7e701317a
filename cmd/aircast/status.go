package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aircast-dev/aircast/pkg/control"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the coordinator's groups, clients, and streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(server *control.Server) error {
				printStatus(server)
				return nil
			})
		},
	}
	return cmd
}

func printStatus(server *control.Server) {
	fmt.Printf("Coordinator %s (%s)\n\n", server.Version(), flagHost)

	fmt.Println("Streams:")
	for _, stream := range server.Streams() {
		fmt.Printf("  %-20s %-8s %s\n", stream.FriendlyName(), stream.Status(), stream.URI())
	}
	fmt.Println()

	fmt.Println("Groups:")
	for _, group := range server.Groups() {
		muted := ""
		if group.Muted() {
			muted = " [muted]"
		}
		fmt.Printf("  %s (stream %s, volume %d%%)%s\n",
			group.FriendlyName(), group.Stream(), group.Volume(), muted)
		for _, id := range group.Clients() {
			client, ok := server.Client(id)
			if !ok {
				continue
			}
			state := "offline"
			if client.Connected() {
				state = "online"
			}
			muted := ""
			if client.Muted() {
				muted = " [muted]"
			}
			fmt.Printf("    %-20s %-8s volume %3d%%%s  (%s)\n",
				client.FriendlyName(), state, client.Volume(), muted, client.Identifier())
		}
	}
}

// findClient resolves a client by id, name, or host name.
func findClient(server *control.Server, key string) (*control.Client, error) {
	if client, ok := server.Client(key); ok {
		return client, nil
	}
	for _, client := range server.Clients() {
		if strings.EqualFold(client.FriendlyName(), key) {
			return client, nil
		}
	}
	return nil, fmt.Errorf("%w: no client matches %q", control.ErrUnknownEntity, key)
}

// findGroup resolves a group by id or friendly name.
func findGroup(server *control.Server, key string) (*control.Group, error) {
	if group, ok := server.Group(key); ok {
		return group, nil
	}
	for _, group := range server.Groups() {
		if strings.EqualFold(group.FriendlyName(), key) {
			return group, nil
		}
	}
	return nil, fmt.Errorf("%w: no group matches %q", control.ErrUnknownEntity, key)
}
