// Package jsonrpc implements the line-delimited JSON-RPC 2.0 wire format
// spoken by the aircast coordinator.
//
// # Wire Format
//
// Every message is a single JSON value terminated by CRLF. Requests carry a
// client-chosen integer id, a method name, and a params object:
//
//	{"id": 7, "method": "Group.SetMute", "params": {...}, "jsonrpc": "2.0"}
//
// Responses echo the id and carry either a result or an error object.
// Notifications are server-initiated and carry no id:
//
//	{"method": "Client.OnConnect", "params": {...}}
//
// The coordinator may batch messages: a single transmission can hold several
// CRLF-separated values, and any value may itself be a JSON array of
// messages. DecodeBatch flattens both forms into the same message sequence,
// so the two transport bindings (framed TCP, websocket) share one decode
// path.
//
// # Message Identity
//
// Ids only need to be unique among concurrently pending requests. The engine
// in pkg/control uses a monotonic counter, which makes collisions impossible
// within one connection's lifetime.
package jsonrpc
