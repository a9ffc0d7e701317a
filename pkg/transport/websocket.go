package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aircast-dev/aircast/pkg/jsonrpc"
)

// WSConn is the message-oriented binding. Every inbound websocket message is
// a complete logical unit and is decoded directly, still handling the
// single-value-vs-array case.
type WSConn struct {
	conn   *websocket.Conn
	sink   Sink
	config *Config
	logger *slog.Logger

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// WebSocketURL builds the coordinator websocket endpoint for a host.
func WebSocketURL(host string, port int) string {
	return fmt.Sprintf("ws://%s:%d%s", host, port, WebSocketPath)
}

// DialWebSocket connects the websocket binding to url and starts its reader
// goroutine.
func DialWebSocket(ctx context.Context, url string, sink Sink, config *Config) (*WSConn, error) {
	config = config.withDefaults()

	dialer := websocket.Dialer{HandshakeTimeout: config.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	w := &WSConn{
		conn:   conn,
		sink:   sink,
		config: config,
		logger: config.Logger.With("transport", "websocket", "url", url),
		done:   make(chan struct{}),
	}
	go w.readLoop()
	return w, nil
}

// Write sends one encoded wire message as a single websocket text message.
func (w *WSConn) Write(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	select {
	case <-w.done:
		return ErrClosed
	default:
	}

	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears down the connection and signals the sink with a nil error.
func (w *WSConn) Close() error {
	w.closeWith(nil)
	return nil
}

func (w *WSConn) closeWith(err error) {
	w.once.Do(func() {
		close(w.done)
		w.conn.Close()
		w.sink.ConnectionLost(err)
	})
}

func (w *WSConn) readLoop() {
	for {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				// Intentional close already signaled.
			default:
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure) {
					w.logger.Error("read error", "error", err)
				}
				w.closeWith(err)
			}
			return
		}

		msgs, err := jsonrpc.DecodeBatch(msg)
		if err != nil {
			w.logger.Error("message decode error", "error", err)
			continue
		}
		for _, m := range msgs {
			w.sink.HandleMessage(m)
		}
	}
}
