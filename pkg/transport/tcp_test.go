package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aircast-dev/aircast/pkg/jsonrpc"
)

// captureSink records delivered messages and the close signal for
// assertions.
type captureSink struct {
	mu     sync.Mutex
	msgs   []jsonrpc.Message
	closed chan error
	gotMsg chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{
		closed: make(chan error, 1),
		gotMsg: make(chan struct{}, 64),
	}
}

func (s *captureSink) HandleMessage(msg jsonrpc.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	s.gotMsg <- struct{}{}
}

func (s *captureSink) ConnectionLost(err error) {
	s.closed <- err
}

func (s *captureSink) messages() []jsonrpc.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]jsonrpc.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *captureSink) waitMessages(t *testing.T, n int) []jsonrpc.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if msgs := s.messages(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-s.gotMsg:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, have %d", n, len(s.messages()))
		}
	}
}

// testServer accepts one TCP connection and hands it to the test.
func testServer(t *testing.T) (addr string, conns chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	conns = make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conns <- conn
	}()
	return ln.Addr().String(), conns
}

func TestTCPDeliversCompleteFrames(t *testing.T) {
	addr, conns := testServer(t)
	sink := newCaptureSink()

	tc, err := DialTCP(context.Background(), addr, sink, nil)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer tc.Close()

	server := <-conns
	defer server.Close()

	server.Write([]byte(`{"method":"Client.OnConnect","params":{"id":"c1"}}` + "\r\n"))

	msgs := sink.waitMessages(t, 1)
	if msgs[0].Method != "Client.OnConnect" {
		t.Errorf("Method = %q, want Client.OnConnect", msgs[0].Method)
	}
}

func TestTCPBuffersPartialFrames(t *testing.T) {
	addr, conns := testServer(t)
	sink := newCaptureSink()

	tc, err := DialTCP(context.Background(), addr, sink, nil)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer tc.Close()

	server := <-conns
	defer server.Close()

	// One frame split across three writes; nothing may be delivered until
	// the terminator lands.
	frame := `{"id":7,"result":{"ok":true}}` + "\r\n"
	server.Write([]byte(frame[:10]))
	time.Sleep(50 * time.Millisecond)
	if got := sink.messages(); len(got) != 0 {
		t.Fatalf("partial frame delivered early: %v", got)
	}
	server.Write([]byte(frame[10:20]))
	server.Write([]byte(frame[20:]))

	msgs := sink.waitMessages(t, 1)
	if msgs[0].ID == nil || *msgs[0].ID != 7 {
		t.Errorf("ID = %v, want 7", msgs[0].ID)
	}
}

func TestTCPDeliversBatchedFrames(t *testing.T) {
	addr, conns := testServer(t)
	sink := newCaptureSink()

	tc, err := DialTCP(context.Background(), addr, sink, nil)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer tc.Close()

	server := <-conns
	defer server.Close()

	// Two terminator-separated values plus a JSON array, one write.
	server.Write([]byte(`{"id":1,"result":1}` + "\r\n" +
		`{"method":"Group.OnMute","params":{}}` + "\r\n" +
		`[{"method":"Stream.OnUpdate"},{"id":2,"result":2}]` + "\r\n"))

	msgs := sink.waitMessages(t, 4)
	want := []string{"", "Group.OnMute", "Stream.OnUpdate", ""}
	for i, method := range want {
		if msgs[i].Method != method {
			t.Errorf("msgs[%d].Method = %q, want %q", i, msgs[i].Method, method)
		}
	}
}

func TestTCPSkipsMalformedChunk(t *testing.T) {
	addr, conns := testServer(t)
	sink := newCaptureSink()

	tc, err := DialTCP(context.Background(), addr, sink, nil)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer tc.Close()

	server := <-conns
	defer server.Close()

	server.Write([]byte("{broken\r\n"))
	server.Write([]byte(`{"id":3,"result":null}` + "\r\n"))

	msgs := sink.waitMessages(t, 1)
	if msgs[0].ID == nil || *msgs[0].ID != 3 {
		t.Errorf("ID = %v, want 3", msgs[0].ID)
	}
}

func TestTCPConnectionLostOnPeerClose(t *testing.T) {
	addr, conns := testServer(t)
	sink := newCaptureSink()

	tc, err := DialTCP(context.Background(), addr, sink, nil)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer tc.Close()

	server := <-conns
	server.Close()

	select {
	case err := <-sink.closed:
		if err == nil {
			t.Error("ConnectionLost(nil) for unexpected peer close, want error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionLost never signaled")
	}

	if err := tc.Write([]byte("x")); err == nil {
		t.Error("Write() after close = nil error")
	}
}

func TestTCPCloseSignalsNilExactlyOnce(t *testing.T) {
	addr, conns := testServer(t)
	sink := newCaptureSink()

	tc, err := DialTCP(context.Background(), addr, sink, nil)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	server := <-conns
	defer server.Close()

	tc.Close()
	tc.Close()

	select {
	case err := <-sink.closed:
		if err != nil {
			t.Errorf("ConnectionLost(%v) for intentional close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionLost never signaled")
	}

	select {
	case <-sink.closed:
		t.Error("ConnectionLost signaled twice")
	case <-time.After(100 * time.Millisecond):
	}
}
