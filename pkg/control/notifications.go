package control

import (
	"context"
	"encoding/json"
)

// notificationHandlers wires every coordinator-pushed event to its mirror
// update. Handlers decode the payload, apply the change to the entity
// in place, and fire the affected callbacks. Unknown entities are logged
// and skipped.
func (s *Server) notificationHandlers() map[string]NotificationHandler {
	return map[string]NotificationHandler{
		NotifyClientConnect:        s.onClientConnect,
		NotifyClientDisconnect:     s.onClientDisconnect,
		NotifyClientVolumeChanged:  s.onClientVolumeChanged,
		NotifyClientLatencyChanged: s.onClientLatencyChanged,
		NotifyClientNameChanged:    s.onClientNameChanged,
		NotifyGroupMute:            s.onGroupMute,
		NotifyGroupStreamChanged:   s.onGroupStreamChanged,
		NotifyGroupNameChanged:     s.onGroupNameChanged,
		NotifyStreamUpdate:         s.onStreamUpdate,
		NotifyStreamMetadata:       s.onStreamMeta,
		NotifyStreamProperties:     s.onStreamProperties,
		NotifyServerUpdate:         s.onServerUpdate,
	}
}

func (s *Server) onClientConnect(params json.RawMessage) {
	var payload clientConnectPayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed client connect event", "error", err)
		return
	}

	s.mu.Lock()
	client, known := s.clients[payload.ID]
	if !known {
		client = newClient(s, payload.Client)
		s.clients[payload.ID] = client
	}
	s.mu.Unlock()

	client.updateConnected(true)
	if !known {
		s.cbMu.RLock()
		fn := s.onNewClient
		s.cbMu.RUnlock()
		if fn != nil {
			fn(client)
		}
	}
	s.logger.Debug("client connected", "client", payload.ID)
}

func (s *Server) onClientDisconnect(params json.RawMessage) {
	var payload idPayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed client disconnect event", "error", err)
		return
	}
	client, ok := s.Client(payload.ID)
	if !ok {
		s.logger.Error("client not found", "client", payload.ID)
		return
	}
	client.updateConnected(false)
	s.logger.Debug("client disconnected", "client", payload.ID)
}

func (s *Server) onClientVolumeChanged(params json.RawMessage) {
	var payload clientVolumePayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed client volume event", "error", err)
		return
	}
	client, ok := s.Client(payload.ID)
	if !ok {
		s.logger.Error("client not found", "client", payload.ID)
		return
	}
	client.updateVolume(payload.Volume)
}

func (s *Server) onClientLatencyChanged(params json.RawMessage) {
	var payload clientLatencyPayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed client latency event", "error", err)
		return
	}
	client, ok := s.Client(payload.ID)
	if !ok {
		s.logger.Error("client not found", "client", payload.ID)
		return
	}
	client.updateLatency(payload.Latency)
}

func (s *Server) onClientNameChanged(params json.RawMessage) {
	var payload clientNamePayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed client name event", "error", err)
		return
	}
	client, ok := s.Client(payload.ID)
	if !ok {
		s.logger.Error("client not found", "client", payload.ID)
		return
	}
	client.updateName(payload.Name)
}

func (s *Server) onGroupMute(params json.RawMessage) {
	var payload groupMutePayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed group mute event", "error", err)
		return
	}
	group, ok := s.Group(payload.ID)
	if !ok {
		s.logger.Error("group not found", "group", payload.ID)
		return
	}
	group.updateMute(payload.Mute)
}

// onGroupStreamChanged updates the group binding and fans the change out
// to every member client, since the audio each member plays just changed.
func (s *Server) onGroupStreamChanged(params json.RawMessage) {
	var payload groupStreamPayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed group stream event", "error", err)
		return
	}
	group, ok := s.Group(payload.ID)
	if !ok {
		s.logger.Error("group not found", "group", payload.ID)
		return
	}
	group.updateStream(payload.StreamID)
	for _, clientID := range group.Clients() {
		if client, ok := s.Client(clientID); ok {
			client.invokeCallback()
		}
	}
}

func (s *Server) onGroupNameChanged(params json.RawMessage) {
	var payload groupNamePayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed group name event", "error", err)
		return
	}
	group, ok := s.Group(payload.ID)
	if !ok {
		s.logger.Error("group not found", "group", payload.ID)
		return
	}
	group.updateName(payload.Name)
}

// onStreamUpdate applies an in-place stream update. An event for a stream
// the mirror does not know usually means one was added on the coordinator,
// so the full status is refetched, except for the codec=null placeholder
// some coordinators emit for meta streams, which carries no usable state.
func (s *Server) onStreamUpdate(params json.RawMessage) {
	var payload streamUpdatePayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed stream update event", "error", err)
		return
	}

	stream, ok := s.Stream(payload.ID)
	if !ok {
		if payload.Stream.URI.Query["codec"] == "null" {
			s.logger.Debug("stream not found, not refreshing", "stream", payload.ID)
			return
		}
		s.logger.Info("stream not found, refreshing", "stream", payload.ID)
		go func() {
			if err := s.Refresh(context.Background()); err != nil {
				s.logger.Error("refresh failed", "error", err)
			}
		}()
		return
	}

	stream.apply(payload.Stream)
	stream.invokeCallback()
	s.notifyGroupsOfStream(payload.ID)
}

func (s *Server) onStreamMeta(params json.RawMessage) {
	var payload streamMetaPayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed stream meta event", "error", err)
		return
	}
	stream, ok := s.Stream(payload.ID)
	if !ok {
		s.logger.Error("stream not found", "stream", payload.ID)
		return
	}
	stream.updateMeta(payload.Meta)
	stream.invokeCallback()
	s.notifyGroupsOfStream(payload.ID)
}

// onStreamProperties updates the property bag and fans the change out to
// groups playing the stream and their member clients.
func (s *Server) onStreamProperties(params json.RawMessage) {
	var payload streamPropertiesPayload
	if err := json.Unmarshal(params, &payload); err != nil {
		s.logger.Error("malformed stream properties event", "error", err)
		return
	}
	stream, ok := s.Stream(payload.ID)
	if !ok {
		s.logger.Error("stream not found", "stream", payload.ID)
		return
	}
	stream.updateProperties(payload.Properties)
	stream.invokeCallback()
	s.notifyGroupsOfStream(payload.ID)
}

// notifyGroupsOfStream fires the callbacks of every group bound to the
// stream and of their member clients.
func (s *Server) notifyGroupsOfStream(streamID string) {
	for _, group := range s.Groups() {
		if group.Stream() != streamID {
			continue
		}
		group.invokeCallback()
		for _, clientID := range group.Clients() {
			if client, ok := s.Client(clientID); ok {
				client.invokeCallback()
			}
		}
	}
}

// onServerUpdate replaces the whole mirror from a pushed status and fires
// the session-level update observer.
func (s *Server) onServerUpdate(params json.RawMessage) {
	if err := s.Synchronize(params); err != nil {
		s.logger.Error("malformed server update event", "error", err)
		return
	}
	s.cbMu.RLock()
	fn := s.onUpdate
	s.cbMu.RUnlock()
	if fn != nil {
		fn()
	}
}
