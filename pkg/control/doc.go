// Package control implements the client side of the coordinator's JSON-RPC
// control interface: a live, observable mirror of the coordinator's groups,
// clients, and streams.
//
// The package brings together the wire codec (pkg/jsonrpc) and the stream
// transports (pkg/transport) behind a single Server type.
//
// # Architecture
//
// The session is layered:
//
//   - Engine: correlates requests with responses, suspends callers until
//     their response arrives, and dispatches notifications to handlers
//   - Server: the root aggregate owning the entity collections, the RPC
//     wrappers, and the reconnecting session controller
//   - Group, Client, Stream: entity views that read from the mirror and
//     write through the Server's RPC wrappers
//
// # State synchronization
//
// Server.Synchronize reconciles the mirror against a full status snapshot.
// Entities that already exist are updated in place, so references and
// callbacks held by the application survive a refresh. All three
// collections are swapped under one lock; a reader never sees a
// half-applied snapshot.
//
// Coordinator-pushed notifications apply incremental changes to the same
// entities and fire the affected callbacks. Callbacks are single-slot:
// registering a new one replaces the previous one.
//
// # Sessions
//
// Start dials the coordinator over TCP line framing or a websocket,
// fetches the initial status, and validates its shape. With Reconnect
// enabled, a dropped connection is retried on a fixed delay until Stop.
// Calls in flight when the connection drops fail with a connection-lost
// RPC error rather than hanging.
//
// # Usage
//
//	server := control.NewServer(control.DefaultConfig("10.0.0.5"))
//	if err := server.Start(ctx); err != nil {
//		return err
//	}
//	defer server.Stop()
//
//	for _, group := range server.Groups() {
//		group.SetCallback(func(g *control.Group) {
//			log.Printf("group changed: %s", g.FriendlyName())
//		})
//	}
package control
