package control

import (
	"fmt"
	"sync"
)

// Stream is a named audio source tracked by the coordinator.
//
// Two metadata schema generations exist on the wire: legacy flat meta tags
// and the newer properties blob with nested metadata. Both are kept; the
// newer schema wins when present.
type Stream struct {
	mu         sync.RWMutex
	id         string
	status     string
	uri        streamURI
	meta       map[string]any
	properties map[string]any
	callback   func(*Stream)
}

func newStream(data streamStatus) *Stream {
	s := &Stream{id: data.ID}
	s.apply(data)
	return s
}

// apply copies wire fields into the existing instance, preserving identity
// and any registered callback across synchronizations.
func (s *Stream) apply(data streamStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = data.Status
	s.uri = data.URI
	s.meta = data.Meta
	s.properties = data.Properties
}

// Identifier returns the stream id.
func (s *Stream) Identifier() string {
	return s.id
}

// Status returns the playback status (playing, idle, ...).
func (s *Stream) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Name returns the display name from the stream URI query.
func (s *Stream) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uri.Query["name"]
}

// FriendlyName returns the display name, falling back to the identifier
// when the URI carries none.
func (s *Stream) FriendlyName() string {
	if name := s.Name(); name != "" {
		return name
	}
	return s.id
}

// Codec returns the codec from the stream URI query.
func (s *Stream) Codec() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uri.Query["codec"]
}

// URI returns the raw stream URI.
func (s *Stream) URI() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uri.Raw
}

// Meta returns the legacy flat metadata tags.
//
// Deprecated: coordinators since 0.26.0 publish Properties instead.
func (s *Stream) Meta() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Properties returns the structured properties blob.
func (s *Stream) Properties() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.properties
}

// Metadata returns the current track metadata. The nested metadata of the
// properties schema takes precedence; legacy meta is the fallback.
func (s *Stream) Metadata() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.properties != nil {
		if md, ok := s.properties["metadata"].(map[string]any); ok {
			return md
		}
	}
	return s.meta
}

// updateMeta replaces the legacy metadata tags.
func (s *Stream) updateMeta(meta map[string]any) {
	s.mu.Lock()
	s.meta = meta
	s.mu.Unlock()
}

// updateProperties replaces the properties blob.
func (s *Stream) updateProperties(properties map[string]any) {
	s.mu.Lock()
	s.properties = properties
	s.mu.Unlock()
}

// SetCallback registers the stream's single observer slot. Re-registration
// overwrites; it does not add a subscriber.
func (s *Stream) SetCallback(fn func(*Stream)) {
	s.mu.Lock()
	s.callback = fn
	s.mu.Unlock()
}

// invokeCallback runs the observer if one is registered.
func (s *Stream) invokeCallback() {
	s.mu.RLock()
	fn := s.callback
	s.mu.RUnlock()
	if fn != nil {
		fn(s)
	}
}

// String returns a debug representation.
func (s *Stream) String() string {
	return fmt.Sprintf("Stream (%s)", s.FriendlyName())
}
