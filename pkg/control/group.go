package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Group is a playback zone aggregating one or more clients, bound to one
// stream. Its volume is derived from its members, never stored.
type Group struct {
	server *Server

	mu        sync.RWMutex
	id        string
	name      string
	muted     bool
	streamID  string
	clientIDs []string
	snapshot  *groupSnapshot
	callback  func(*Group)
}

// groupSnapshot captures restorable group state.
type groupSnapshot struct {
	muted  bool
	volume int
	stream string
}

func newGroup(server *Server, data groupStatus) *Group {
	g := &Group{server: server, id: data.ID}
	g.apply(data)
	return g
}

// apply copies wire fields into the existing instance, preserving identity
// and any registered callback across synchronizations.
func (g *Group) apply(data groupStatus) {
	ids := make([]string, 0, len(data.Clients))
	for _, client := range data.Clients {
		ids = append(ids, client.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.name = data.Name
	g.muted = data.Muted
	g.streamID = data.StreamID
	g.clientIDs = ids
}

// Identifier returns the group id.
func (g *Group) Identifier() string {
	return g.id
}

// Name returns the explicit group name, which may be empty.
func (g *Group) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// Stream returns the identifier of the stream the group plays.
func (g *Group) Stream() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.streamID
}

// StreamStatus returns the playback status of the group's stream, or the
// empty string when the stream is not locally known.
func (g *Group) StreamStatus() string {
	if stream, ok := g.server.Stream(g.Stream()); ok {
		return stream.Status()
	}
	return ""
}

// Muted reports the group mute flag.
func (g *Group) Muted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.muted
}

// Clients returns the ordered member client identifiers.
func (g *Group) Clients() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.clientIDs))
	copy(out, g.clientIDs)
	return out
}

// Volume returns the rounded arithmetic mean of the member volumes, or 0
// for an empty group.
func (g *Group) Volume() int {
	ids := g.Clients()
	if len(ids) == 0 {
		return 0
	}
	sum := 0
	for _, id := range ids {
		if client, ok := g.server.Client(id); ok {
			sum += client.Volume()
		}
	}
	return int(math.Round(float64(sum) / float64(len(ids))))
}

// FriendlyName returns the explicit name, else the sorted member friendly
// names joined with "+", else the identifier.
func (g *Group) FriendlyName() string {
	if name := g.Name(); name != "" {
		return name
	}
	var names []string
	for _, id := range g.Clients() {
		if client, ok := g.server.Client(id); ok {
			names = append(names, client.FriendlyName())
		}
	}
	sort.Strings(names)
	if joined := strings.Join(names, "+"); joined != "" {
		return joined
	}
	return g.id
}

// StreamsByName returns the session's streams keyed by friendly name.
func (g *Group) StreamsByName() map[string]*Stream {
	out := make(map[string]*Stream)
	for _, stream := range g.server.Streams() {
		out[stream.FriendlyName()] = stream
	}
	return out
}

// SetName sets the explicit group name. Requires coordinator >= 0.16.0.
func (g *Group) SetName(ctx context.Context, name string) error {
	g.mu.Lock()
	g.name = name
	g.mu.Unlock()
	_, err := g.server.GroupName(ctx, g.id, name)
	return err
}

// SetStream binds the group to another stream.
func (g *Group) SetStream(ctx context.Context, streamID string) error {
	g.mu.Lock()
	g.streamID = streamID
	g.mu.Unlock()
	_, err := g.server.GroupStream(ctx, g.id, streamID)
	if err != nil {
		return err
	}
	g.server.logger.Debug("set stream", "stream", streamID, "group", g.FriendlyName())
	return nil
}

// SetMuted sets the group mute flag.
func (g *Group) SetMuted(ctx context.Context, muted bool) error {
	g.mu.Lock()
	g.muted = muted
	g.mu.Unlock()
	_, err := g.server.GroupMute(ctx, g.id, muted)
	if err != nil {
		return err
	}
	g.server.logger.Debug("set muted", "muted", muted, "group", g.FriendlyName())
	return nil
}

// SetVolume drives the group to a target volume by redistributing the
// change across members proportionally to their headroom (when raising) or
// their current level (when lowering). Setting the current volume is a
// no-op that issues no remote calls.
func (g *Group) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("%w: %d", ErrVolumeOutOfRange, volume)
	}
	current := g.Volume()
	if volume == current {
		g.server.logger.Debug("left volume unchanged", "volume", volume, "group", g.FriendlyName())
		return nil
	}

	delta := volume - current
	var ratio float64
	if delta < 0 {
		ratio = float64(current-volume) / float64(current)
	} else {
		ratio = float64(volume-current) / float64(100-current)
	}

	var errs []error
	for _, id := range g.Clients() {
		client, ok := g.server.Client(id)
		if !ok {
			continue
		}
		level := float64(client.Volume())
		if delta < 0 {
			level -= ratio * level
		} else {
			level += ratio * (100 - level)
		}
		rounded := clampVolume(int(math.Round(level)))
		if err := client.setVolume(ctx, rounded, false); err != nil {
			errs = append(errs, err)
			continue
		}
		client.updateVolume(volumeStatus{Percent: rounded, Muted: client.Muted()})
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	g.server.logger.Debug("set volume", "volume", volume, "group", g.FriendlyName())
	return nil
}

// AddClient moves a client into this group. The coordinator's status is
// refetched afterwards so membership reflects its authoritative layout.
func (g *Group) AddClient(ctx context.Context, clientID string) error {
	members := g.Clients()
	for _, id := range members {
		if id == clientID {
			g.server.logger.Error("client already in group", "client", clientID, "group", g.id)
			return nil
		}
	}

	if _, err := g.server.GroupClients(ctx, g.id, append(members, clientID)); err != nil {
		return err
	}
	g.server.logger.Debug("added client", "client", clientID, "group", g.id)
	if err := g.server.Refresh(ctx); err != nil {
		return err
	}
	if client, ok := g.server.Client(clientID); ok {
		client.invokeCallback()
	}
	g.invokeCallback()
	return nil
}

// RemoveClient moves a client out of this group.
func (g *Group) RemoveClient(ctx context.Context, clientID string) error {
	members := g.Clients()
	remaining := members[:0]
	for _, id := range members {
		if id != clientID {
			remaining = append(remaining, id)
		}
	}

	if _, err := g.server.GroupClients(ctx, g.id, remaining); err != nil {
		return err
	}
	g.server.logger.Debug("removed client", "client", clientID, "group", g.id)
	if err := g.server.Refresh(ctx); err != nil {
		return err
	}
	if client, ok := g.server.Client(clientID); ok {
		client.invokeCallback()
	}
	g.invokeCallback()
	return nil
}

// Snapshot captures the current {muted, volume, stream} so Restore can
// reapply them later.
func (g *Group) Snapshot() {
	muted := g.Muted()
	volume := g.Volume()
	stream := g.Stream()

	g.mu.Lock()
	g.snapshot = &groupSnapshot{muted: muted, volume: volume, stream: stream}
	g.mu.Unlock()
	g.server.logger.Debug("took snapshot", "group", g.FriendlyName())
}

// Restore reapplies the snapshotted state. A group without a snapshot is a
// no-op.
func (g *Group) Restore(ctx context.Context) error {
	g.mu.RLock()
	snap := g.snapshot
	g.mu.RUnlock()
	if snap == nil {
		return nil
	}

	if err := g.SetMuted(ctx, snap.muted); err != nil {
		return err
	}
	if err := g.SetVolume(ctx, snap.volume); err != nil {
		return err
	}
	if err := g.SetStream(ctx, snap.stream); err != nil {
		return err
	}
	g.invokeCallback()
	g.server.logger.Debug("restored snapshot", "group", g.FriendlyName())
	return nil
}

// updateMute applies a coordinator-pushed mute change.
func (g *Group) updateMute(muted bool) {
	g.mu.Lock()
	g.muted = muted
	g.mu.Unlock()
	g.invokeCallback()
}

// updateName applies a coordinator-pushed name change.
func (g *Group) updateName(name string) {
	g.mu.Lock()
	g.name = name
	g.mu.Unlock()
	g.invokeCallback()
}

// updateStream applies a coordinator-pushed stream change.
func (g *Group) updateStream(streamID string) {
	g.mu.Lock()
	g.streamID = streamID
	g.mu.Unlock()
	g.invokeCallback()
}

// SetCallback registers the group's single observer slot. Re-registration
// overwrites; it does not add a subscriber.
func (g *Group) SetCallback(fn func(*Group)) {
	g.mu.Lock()
	g.callback = fn
	g.mu.Unlock()
}

func (g *Group) invokeCallback() {
	g.mu.RLock()
	fn := g.callback
	g.mu.RUnlock()
	if fn != nil {
		fn(g)
	}
}

// String returns a debug representation.
func (g *Group) String() string {
	return fmt.Sprintf("Group (%s, %s)", g.FriendlyName(), g.id)
}

// clampVolume bounds a volume to [0,100].
func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
