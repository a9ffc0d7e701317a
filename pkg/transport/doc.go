// Package transport provides the connection bindings that carry JSON-RPC
// traffic between the control client and the coordinator.
//
// Two interchangeable bindings implement the same contract:
//
//   - TCP: a framed byte stream on the classic control port. Inbound bytes
//     are buffered until a CRLF-terminated chunk is available, then decoded.
//     A chunk may hold several terminator-separated values or a JSON array.
//   - WebSocket: a message-oriented binding reached via a fixed URL path.
//     Each inbound message is already a complete logical unit.
//
// A binding owns exactly one underlying connection. It pushes every decoded
// message into a Sink in arrival order from a single reader goroutine, and
// signals connection loss exactly once. Writes may come from any goroutine.
package transport
