package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aircast-dev/aircast/pkg/jsonrpc"
)

// fakeConn records writes so tests can inspect outgoing requests and feed
// responses back through the engine's sink interface.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (c *fakeConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("conn closed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes = append(c.writes, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// waitWrites blocks until n requests have been written.
func (c *fakeConn) waitWrites(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.writes) >= n {
			out := make([][]byte, len(c.writes))
			copy(out, c.writes)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d writes", n)
	return nil
}

func requestID(t *testing.T, data []byte) uint64 {
	t.Helper()
	var req struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return req.ID
}

func responseMessage(id uint64, result string) jsonrpc.Message {
	return jsonrpc.Message{ID: &id, Result: json.RawMessage(result)}
}

func newTestEngine(conn *fakeConn) *Engine {
	e := NewEngine(nil, nil, nil, nil, nil)
	e.Attach(conn)
	return e
}

func TestEngineConcurrentRequestsOutOfOrder(t *testing.T) {
	conn := &fakeConn{}
	engine := newTestEngine(conn)

	const calls = 5
	results := make([]json.RawMessage, calls)
	errs := make([]error, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Request(context.Background(),
				fmt.Sprintf("Test.Method%d", i), nil)
		}(i)
	}

	writes := conn.waitWrites(t, calls)

	// Respond in reverse arrival order. Each caller must still get the
	// result matching its own id.
	for i := len(writes) - 1; i >= 0; i-- {
		id := requestID(t, writes[i])
		engine.HandleMessage(responseMessage(id, fmt.Sprintf(`{"echo":%d}`, id)))
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for i := 0; i < calls; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d: unexpected error %v", i, errs[i])
		}
		var result struct {
			Echo uint64 `json:"echo"`
		}
		if err := json.Unmarshal(results[i], &result); err != nil {
			t.Fatalf("request %d: bad result %q", i, results[i])
		}
		if seen[result.Echo] {
			t.Errorf("request %d: duplicate result id %d", i, result.Echo)
		}
		seen[result.Echo] = true
	}
}

func TestEngineMonotonicIDs(t *testing.T) {
	conn := &fakeConn{}
	engine := newTestEngine(conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			writes := conn.waitWrites(t, i+1)
			engine.HandleMessage(responseMessage(requestID(t, writes[i]), `{}`))
		}
	}()
	for i := 0; i < 3; i++ {
		if _, err := engine.Request(context.Background(), "Test.Seq", nil); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	<-done

	writes := conn.waitWrites(t, 3)
	var last uint64
	for i, data := range writes {
		id := requestID(t, data)
		if id <= last {
			t.Fatalf("write %d: id %d not greater than %d", i, id, last)
		}
		last = id
	}
}

func TestEngineProtocolError(t *testing.T) {
	conn := &fakeConn{}
	engine := newTestEngine(conn)

	go func() {
		writes := conn.waitWrites(t, 1)
		id := requestID(t, writes[0])
		engine.HandleMessage(jsonrpc.Message{
			ID:    &id,
			Error: &jsonrpc.Error{Code: -32601, Message: "method not found"},
		})
	}()

	_, err := engine.Request(context.Background(), "Nope.Nope", nil)
	var rpcErr *jsonrpc.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error = %v, want *jsonrpc.Error", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("Code = %d, want -32601", rpcErr.Code)
	}
}

func TestEngineConnectionLostReleasesPending(t *testing.T) {
	conn := &fakeConn{}
	var disconnected error
	engine := NewEngine(nil, func(err error) { disconnected = err }, nil, nil, nil)
	engine.Attach(conn)

	const calls = 4
	errs := make([]error, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Request(context.Background(), "Test.Hang", nil)
		}(i)
	}
	conn.waitWrites(t, calls)

	engine.ConnectionLost(io.ErrUnexpectedEOF)
	wg.Wait()

	for i, err := range errs {
		var rpcErr *jsonrpc.Error
		if !errors.As(err, &rpcErr) {
			t.Fatalf("request %d: error = %v, want *jsonrpc.Error", i, err)
		}
		if rpcErr.Code != jsonrpc.ConnectionLostCode {
			t.Errorf("request %d: Code = %d, want %d", i, rpcErr.Code, jsonrpc.ConnectionLostCode)
		}
	}
	if disconnected != io.ErrUnexpectedEOF {
		t.Errorf("disconnect error = %v, want %v", disconnected, io.ErrUnexpectedEOF)
	}

	// Once lost, new requests fail immediately instead of hanging.
	if _, err := engine.Request(context.Background(), "Test.After", nil); err == nil {
		t.Fatal("request after connection loss succeeded")
	}
}

func TestEngineUnknownResponseIDDropped(t *testing.T) {
	conn := &fakeConn{}
	engine := newTestEngine(conn)

	engine.HandleMessage(responseMessage(999, `{}`))

	// The engine must still serve requests normally afterwards.
	go func() {
		writes := conn.waitWrites(t, 1)
		engine.HandleMessage(responseMessage(requestID(t, writes[0]), `{"ok":true}`))
	}()
	if _, err := engine.Request(context.Background(), "Test.Live", nil); err != nil {
		t.Fatalf("request after stale response: %v", err)
	}
}

func TestEngineNotificationDispatch(t *testing.T) {
	var got json.RawMessage
	handlers := map[string]NotificationHandler{
		"Thing.OnChange": func(params json.RawMessage) { got = params },
	}
	engine := NewEngine(handlers, nil, nil, nil, nil)

	engine.HandleMessage(jsonrpc.Message{Method: "Thing.OnMystery", Params: json.RawMessage(`{}`)})
	if got != nil {
		t.Fatal("unknown notification reached a handler")
	}

	engine.HandleMessage(jsonrpc.Message{Method: "Thing.OnChange", Params: json.RawMessage(`{"id":"x"}`)})
	if string(got) != `{"id":"x"}` {
		t.Errorf("params = %q, want %q", got, `{"id":"x"}`)
	}
}

func TestEngineRequestCanceled(t *testing.T) {
	conn := &fakeConn{}
	engine := newTestEngine(conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := engine.Request(ctx, "Test.Slow", nil)
		done <- err
	}()
	writes := conn.waitWrites(t, 1)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	// The late response for the abandoned id must be dropped quietly.
	engine.HandleMessage(responseMessage(requestID(t, writes[0]), `{}`))
}
