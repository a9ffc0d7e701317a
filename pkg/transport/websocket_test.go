package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades one connection and hands it to the test.
func wsTestServer(t *testing.T) (url string, conns chan *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	conns = make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != WebSocketPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + WebSocketPath, conns
}

func TestWebSocketURL(t *testing.T) {
	got := WebSocketURL("zone.local", WebSocketPort)
	want := "ws://zone.local:1780/jsonrpc"
	if got != want {
		t.Errorf("WebSocketURL() = %q, want %q", got, want)
	}
}

func TestWebSocketDeliversMessages(t *testing.T) {
	url, conns := wsTestServer(t)
	sink := newCaptureSink()

	wc, err := DialWebSocket(context.Background(), url, sink, nil)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer wc.Close()

	server := <-conns
	defer server.Close()

	server.WriteMessage(websocket.TextMessage,
		[]byte(`{"method":"Client.OnVolumeChanged","params":{"id":"c1"}}`))
	server.WriteMessage(websocket.TextMessage,
		[]byte(`[{"id":4,"result":{}},{"method":"Group.OnMute"}]`))

	msgs := sink.waitMessages(t, 3)
	if msgs[0].Method != "Client.OnVolumeChanged" {
		t.Errorf("msgs[0].Method = %q", msgs[0].Method)
	}
	if msgs[1].ID == nil || *msgs[1].ID != 4 {
		t.Errorf("msgs[1].ID = %v, want 4", msgs[1].ID)
	}
	if msgs[2].Method != "Group.OnMute" {
		t.Errorf("msgs[2].Method = %q", msgs[2].Method)
	}
}

func TestWebSocketWriteReachesServer(t *testing.T) {
	url, conns := wsTestServer(t)
	sink := newCaptureSink()

	wc, err := DialWebSocket(context.Background(), url, sink, nil)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer wc.Close()

	server := <-conns
	defer server.Close()

	if err := wc.Write([]byte(`{"id":1,"method":"Server.GetStatus","params":{},"jsonrpc":"2.0"}` + "\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("server read error = %v", err)
	}
	if !strings.Contains(string(msg), "Server.GetStatus") {
		t.Errorf("server received %q", msg)
	}
}

func TestWebSocketConnectionLostOnPeerClose(t *testing.T) {
	url, conns := wsTestServer(t)
	sink := newCaptureSink()

	wc, err := DialWebSocket(context.Background(), url, sink, nil)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer wc.Close()

	server := <-conns
	server.Close()

	select {
	case err := <-sink.closed:
		if err == nil {
			t.Error("ConnectionLost(nil) for peer close, want error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionLost never signaled")
	}
}

func TestWebSocketSkipsMalformedMessage(t *testing.T) {
	url, conns := wsTestServer(t)
	sink := newCaptureSink()

	wc, err := DialWebSocket(context.Background(), url, sink, nil)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer wc.Close()

	server := <-conns
	defer server.Close()

	server.WriteMessage(websocket.TextMessage, []byte("not json"))
	server.WriteMessage(websocket.TextMessage, []byte(`{"id":9,"result":true}`))

	msgs := sink.waitMessages(t, 1)
	if msgs[0].ID == nil || *msgs[0].ID != 9 {
		t.Errorf("ID = %v, want 9", msgs[0].ID)
	}
}
