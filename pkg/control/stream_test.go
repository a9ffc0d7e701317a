package control

import "testing"

func TestStreamFriendlyName(t *testing.T) {
	tests := []struct {
		name string
		data streamStatus
		want string
	}{
		{
			name: "named",
			data: streamStatus{
				ID:  "fifo",
				URI: streamURI{Query: map[string]string{"name": "Radio"}},
			},
			want: "Radio",
		},
		{
			name: "unnamed_falls_back_to_id",
			data: streamStatus{ID: "fifo", URI: streamURI{}},
			want: "fifo",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stream := newStream(tc.data)
			if got := stream.FriendlyName(); got != tc.want {
				t.Errorf("FriendlyName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStreamMetadataPrecedence(t *testing.T) {
	stream := newStream(streamStatus{
		ID:   "s",
		Meta: map[string]any{"title": "legacy"},
	})
	meta := stream.Metadata()
	if meta["title"] != "legacy" {
		t.Fatalf("Metadata() = %v, want legacy tags", meta)
	}

	// Once the modern property bag carries metadata, it wins over the
	// legacy tags.
	stream.updateProperties(map[string]any{
		"metadata": map[string]any{"title": "modern"},
	})
	meta = stream.Metadata()
	if meta["title"] != "modern" {
		t.Errorf("Metadata() = %v, want modern properties", meta)
	}
}

func TestStreamCallbackSingleSlot(t *testing.T) {
	stream := newStream(streamStatus{ID: "s", Status: "idle"})

	var first, second int
	stream.SetCallback(func(*Stream) { first++ })
	stream.SetCallback(func(*Stream) { second++ })

	stream.invokeCallback()
	if first != 0 || second != 1 {
		t.Errorf("callbacks fired first=%d second=%d, want 0 and 1", first, second)
	}

	stream.updateProperties(map[string]any{"canPlay": true})
	if got := stream.Properties()["canPlay"]; got != true {
		t.Errorf("Properties()[canPlay] = %v, want true", got)
	}
}

func TestStreamApply(t *testing.T) {
	stream := newStream(streamStatus{
		ID:     "s",
		Status: "idle",
		URI:    streamURI{Raw: "pipe:///a", Query: map[string]string{"codec": "flac"}},
	})

	stream.apply(streamStatus{
		ID:     "s",
		Status: "playing",
		URI:    streamURI{Raw: "pipe:///a", Query: map[string]string{"codec": "flac"}},
	})
	if got := stream.Status(); got != "playing" {
		t.Errorf("Status() = %q, want %q", got, "playing")
	}
	if got := stream.Codec(); got != "flac" {
		t.Errorf("Codec() = %q, want %q", got, "flac")
	}
}
