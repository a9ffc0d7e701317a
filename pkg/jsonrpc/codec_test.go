package jsonrpc

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestEncodeRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		method string
		id     uint64
		params any
	}{
		{
			name:   "no_params",
			method: "Server.GetStatus",
			id:     1,
		},
		{
			name:   "with_params",
			method: "Client.SetVolume",
			id:     42,
			params: map[string]any{"id": "c1", "volume": map[string]any{"percent": 50}},
		},
		{
			name:   "large_id",
			method: "Server.GetRPCVersion",
			id:     1 << 40,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeRequest(tc.method, tc.id, tc.params)
			if err != nil {
				t.Fatalf("EncodeRequest() error = %v", err)
			}
			if !bytes.HasSuffix(data, []byte(Terminator)) {
				t.Errorf("encoded request missing CRLF terminator: %q", data)
			}

			var req Request
			if err := json.Unmarshal(bytes.TrimSuffix(data, []byte(Terminator)), &req); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if req.ID != tc.id {
				t.Errorf("ID = %d, want %d", req.ID, tc.id)
			}
			if req.Method != tc.method {
				t.Errorf("Method = %q, want %q", req.Method, tc.method)
			}
			if req.JSONRPC != Version {
				t.Errorf("JSONRPC = %q, want %q", req.JSONRPC, Version)
			}
		})
	}
}

func TestEncodeRequestDefaultsParams(t *testing.T) {
	data, err := EncodeRequest("Server.GetStatus", 3, nil)
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}
	if !bytes.Contains(data, []byte(`"params":{}`)) {
		t.Errorf("nil params not encoded as empty object: %s", data)
	}
}

func TestDecodeBatch(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCount   int
		wantMethods []string
	}{
		{
			name:        "single_object",
			input:       `{"method":"Client.OnConnect","params":{"id":"c1"}}` + "\r\n",
			wantCount:   1,
			wantMethods: []string{"Client.OnConnect"},
		},
		{
			name: "crlf_separated",
			input: `{"method":"Client.OnConnect","params":{}}` + "\r\n" +
				`{"method":"Client.OnDisconnect","params":{}}` + "\r\n",
			wantCount:   2,
			wantMethods: []string{"Client.OnConnect", "Client.OnDisconnect"},
		},
		{
			name:        "top_level_array",
			input:       `[{"method":"Group.OnMute"},{"method":"Group.OnNameChanged"}]` + "\r\n",
			wantCount:   2,
			wantMethods: []string{"Group.OnMute", "Group.OnNameChanged"},
		},
		{
			name: "mixed_lines_and_arrays",
			input: `{"id":5,"result":{}}` + "\r\n" +
				`[{"method":"Stream.OnUpdate"},{"method":"Group.OnMute"}]` + "\r\n",
			wantCount:   3,
			wantMethods: []string{"", "Stream.OnUpdate", "Group.OnMute"},
		},
		{
			name:      "no_trailing_terminator",
			input:     `{"id":1,"result":"ok"}`,
			wantCount: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msgs, err := DecodeBatch([]byte(tc.input))
			if err != nil {
				t.Fatalf("DecodeBatch() error = %v", err)
			}
			if len(msgs) != tc.wantCount {
				t.Fatalf("got %d messages, want %d", len(msgs), tc.wantCount)
			}
			for i, method := range tc.wantMethods {
				if msgs[i].Method != method {
					t.Errorf("msgs[%d].Method = %q, want %q", i, msgs[i].Method, method)
				}
			}
		})
	}
}

func TestDecodeBatchInvalid(t *testing.T) {
	if _, err := DecodeBatch([]byte("{not json}\r\n")); err == nil {
		t.Error("DecodeBatch() = nil error for malformed input")
	}
	if _, err := DecodeBatch([]byte("[{}, oops]\r\n")); err == nil {
		t.Error("DecodeBatch() = nil error for malformed array")
	}
}

func TestMessageIsResponse(t *testing.T) {
	var resp Message
	if err := json.Unmarshal([]byte(`{"id":9,"result":{"ok":true}}`), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.IsResponse() {
		t.Error("message with id not classified as response")
	}

	var notif Message
	if err := json.Unmarshal([]byte(`{"method":"Server.OnUpdate","params":{}}`), &notif); err != nil {
		t.Fatal(err)
	}
	if notif.IsResponse() {
		t.Error("notification classified as response")
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{Code: -32601, Message: "method not found"}
	if got := e.Error(); got != "jsonrpc: -32601 method not found" {
		t.Errorf("Error() = %q", got)
	}

	lost := ConnectionLost()
	if lost.Code != ConnectionLostCode || lost.Message != "connection lost" {
		t.Errorf("ConnectionLost() = %+v", lost)
	}
}
