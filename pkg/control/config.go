package control

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/aircast-dev/aircast/pkg/transport"
)

// Binding selects which transport carries the control connection.
type Binding int

const (
	// BindingTCP uses the framed byte stream on the classic control port.
	BindingTCP Binding = iota

	// BindingWebSocket uses the message-oriented websocket endpoint.
	BindingWebSocket
)

// String returns the binding name.
func (b Binding) String() string {
	switch b {
	case BindingTCP:
		return "tcp"
	case BindingWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// defaultPort returns the well-known coordinator port for the binding.
func (b Binding) defaultPort() int {
	if b == BindingWebSocket {
		return transport.WebSocketPort
	}
	return transport.ControlPort
}

// DefaultReconnectDelay is the fixed delay between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// Config holds configuration for a control session.
type Config struct {
	// Host is the coordinator host. Required.
	Host string

	// Port is the coordinator control port.
	// Default: 1705 for TCP, 1780 for websocket.
	Port int

	// Binding selects the transport. Default: BindingTCP.
	Binding Binding

	// Reconnect enables automatic reconnection after an unexpected
	// disconnect. Default: false.
	Reconnect bool

	// ReconnectDelay is the fixed delay before each reconnect attempt.
	// Default: DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// Logger receives session diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Metrics receives session metrics. Nil disables collection.
	Metrics *Metrics

	// Tracer traces outbound RPCs. Nil disables tracing.
	Tracer trace.Tracer

	// Transport tunes the underlying binding. Nil uses transport
	// defaults.
	Transport *transport.Config
}

// DefaultConfig returns a Config for host with sensible defaults.
func DefaultConfig(host string) *Config {
	return &Config{
		Host:           host,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults fills zero-valued fields.
func (c *Config) withDefaults() *Config {
	out := c.Clone()
	if out == nil {
		out = &Config{}
	}
	if out.Port == 0 {
		out.Port = out.Binding.defaultPort()
	}
	if out.ReconnectDelay <= 0 {
		out.ReconnectDelay = DefaultReconnectDelay
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}
