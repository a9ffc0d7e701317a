package transport

import (
	"errors"
	"log/slog"
	"time"

	"github.com/aircast-dev/aircast/pkg/jsonrpc"
)

// Well-known coordinator ports and paths.
const (
	// ControlPort is the default port for the framed TCP binding.
	ControlPort = 1705

	// WebSocketPort is the default port for the websocket binding.
	WebSocketPort = 1780

	// WebSocketPath is the fixed URL path for the websocket binding.
	WebSocketPath = "/jsonrpc"
)

// Sentinel errors for connection state.
var (
	// ErrClosed is returned when writing to a closed connection.
	ErrClosed = errors.New("transport: connection closed")
)

// Sink receives decoded traffic from a binding.
//
// HandleMessage is called from the binding's single reader goroutine, so
// messages arrive strictly in wire order and a sink never sees two calls
// interleaved. ConnectionLost fires exactly once per connection, after the
// final HandleMessage; the error is nil for an intentional Close.
type Sink interface {
	HandleMessage(msg jsonrpc.Message)
	ConnectionLost(err error)
}

// Conn is one established control connection.
type Conn interface {
	// Write sends one encoded wire message. Safe for concurrent use.
	Write(data []byte) error

	// Close tears down the connection. The sink's ConnectionLost is
	// signaled with a nil error. Close is idempotent.
	Close() error
}

// Config holds tunables shared by both bindings.
type Config struct {
	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadBufferSize is the size of the TCP read buffer.
	// Default: 8KB.
	ReadBufferSize int

	// DialTimeout is the maximum time to wait for a connection.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// Logger receives binding diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WriteTimeout:   10 * time.Second,
		ReadBufferSize: 8 * 1024,
		DialTimeout:    10 * time.Second,
	}
}

// withDefaults fills zero-valued fields so callers can pass a partial or
// nil config.
func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		out.Logger = slog.Default()
		return out
	}
	if c.WriteTimeout > 0 {
		out.WriteTimeout = c.WriteTimeout
	}
	if c.ReadBufferSize > 0 {
		out.ReadBufferSize = c.ReadBufferSize
	}
	if c.DialTimeout > 0 {
		out.DialTimeout = c.DialTimeout
	}
	out.Logger = c.Logger
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}
