package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version sent with every request.
const Version = "2.0"

// Terminator ends every wire message.
const Terminator = "\r\n"

// Request is an outbound remote procedure call.
type Request struct {
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
}

// Error is a protocol-level error object returned by the coordinator.
// It is data, not a transport failure: a request that yields an Error
// completed normally at the wire level.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("jsonrpc: %d %s: %s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc: %d %s", e.Code, e.Message)
}

// ConnectionLostCode is the synthetic error code injected into pending
// requests when the underlying connection closes.
const ConnectionLostCode = -1

// ConnectionLost returns the synthetic error delivered to callers whose
// requests were in flight when the connection dropped.
func ConnectionLost() *Error {
	return &Error{Code: ConnectionLostCode, Message: "connection lost"}
}

// Message is a single decoded inbound value: either a response (ID set) or
// a notification (Method set, ID absent).
type Message struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// IsResponse reports whether the message correlates to an outstanding
// request. Anything without an id is a notification.
func (m *Message) IsResponse() bool {
	return m.ID != nil
}
