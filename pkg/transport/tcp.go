package transport

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/aircast-dev/aircast/pkg/jsonrpc"
)

// TCPConn is the framed-stream binding. It accumulates raw bytes until a
// CRLF-terminated chunk is available, decodes everything accumulated, and
// pushes each message into the sink.
type TCPConn struct {
	conn   net.Conn
	sink   Sink
	config *Config
	logger *slog.Logger

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// DialTCP connects the framed TCP binding to addr (host:port) and starts its
// reader goroutine. The sink starts receiving messages before DialTCP
// returns.
func DialTCP(ctx context.Context, addr string, sink Sink, config *Config) (*TCPConn, error) {
	config = config.withDefaults()

	dialer := net.Dialer{Timeout: config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	t := &TCPConn{
		conn:   conn,
		sink:   sink,
		config: config,
		logger: config.Logger.With("transport", "tcp", "addr", addr),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Write sends one encoded wire message.
func (t *TCPConn) Write(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	_, err := t.conn.Write(data)
	return err
}

// Close tears down the connection and signals the sink with a nil error.
func (t *TCPConn) Close() error {
	t.closeWith(nil)
	return nil
}

// closeWith shuts the socket and delivers the loss signal exactly once.
func (t *TCPConn) closeWith(err error) {
	t.once.Do(func() {
		close(t.done)
		t.conn.Close()
		t.sink.ConnectionLost(err)
	})
}

// readLoop accumulates inbound bytes and decodes a chunk only when it ends
// with the wire terminator. Partial frames split across many reads stay
// buffered; one read may complete several frames at once.
func (t *TCPConn) readLoop() {
	buf := make([]byte, t.config.ReadBufferSize)
	var pending []byte

	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if bytes.HasSuffix(pending, []byte(jsonrpc.Terminator)) {
				t.deliver(pending)
				pending = pending[:0]
			}
		}
		if err != nil {
			select {
			case <-t.done:
				// Intentional close already signaled.
			default:
				t.closeWith(err)
			}
			return
		}
	}
}

// deliver decodes one complete chunk and pushes its messages in order.
// A malformed chunk is logged and dropped; it must not kill the connection.
func (t *TCPConn) deliver(chunk []byte) {
	msgs, err := jsonrpc.DecodeBatch(chunk)
	if err != nil {
		t.logger.Error("frame decode error", "error", err)
		return
	}
	for _, msg := range msgs {
		t.sink.HandleMessage(msg)
	}
}
