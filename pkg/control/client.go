package control

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Client is a speaker endpoint tracked by the coordinator.
//
// Mutators apply optimistically to local state, then issue the remote call;
// the coordinator's own change notification confirms or corrects. A client
// never stores its owning group; membership is derived by scanning group
// member lists, so it can never dangle across synchronizations.
type Client struct {
	server *Server

	mu        sync.RWMutex
	id        string
	host      Host
	version   string
	connected bool
	name      string
	latency   int
	volume    int
	muted     bool
	lastSeen  time.Time
	snapshot  *clientSnapshot
	callback  func(*Client)
}

// clientSnapshot captures restorable client state.
type clientSnapshot struct {
	name    string
	volume  int
	muted   bool
	latency int
}

func newClient(server *Server, data clientStatus) *Client {
	c := &Client{server: server, id: data.ID}
	c.apply(data)
	return c
}

// apply copies wire fields into the existing instance, preserving identity
// and any registered callback across synchronizations.
func (c *Client) apply(data clientStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = data.Host
	c.version = data.Snapclient.Version
	c.connected = data.Connected
	c.name = data.Config.Name
	c.latency = data.Config.Latency
	c.volume = data.Config.Volume.Percent
	c.muted = data.Config.Volume.Muted
	c.lastSeen = data.LastSeen.Time()
}

// Identifier returns the client id.
func (c *Client) Identifier() string {
	return c.id
}

// Host returns the machine descriptor.
func (c *Client) Host() Host {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// Version returns the client software version.
func (c *Client) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Connected reports whether the coordinator currently sees the client.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Name returns the configured display name.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// FriendlyName returns the display name, falling back to the host name.
func (c *Client) FriendlyName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.name != "" {
		return c.name
	}
	return c.host.Name
}

// Latency returns the configured latency in milliseconds.
func (c *Client) Latency() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latency
}

// Volume returns the volume percent.
func (c *Client) Volume() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// Muted reports the mute flag.
func (c *Client) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// LastSeen returns when the coordinator last saw the client.
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

// Group returns the group this client belongs to, or nil. Membership is
// recomputed by scanning all groups rather than stored.
func (c *Client) Group() *Group {
	return c.server.groupOfClient(c.id)
}

// GroupsAvailable returns all groups known to the session.
func (c *Client) GroupsAvailable() []*Group {
	return c.server.Groups()
}

// SetName sets a new display name.
func (c *Client) SetName(ctx context.Context, name string) error {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	_, err := c.server.ClientName(ctx, c.id, name)
	return err
}

// SetLatency sets the client latency in milliseconds.
func (c *Client) SetLatency(ctx context.Context, latency int) error {
	c.mu.Lock()
	c.latency = latency
	c.mu.Unlock()
	_, err := c.server.ClientLatency(ctx, c.id, latency)
	return err
}

// SetMuted sets the mute flag. The remote call carries the whole volume
// object, as the coordinator expects.
func (c *Client) SetMuted(ctx context.Context, muted bool) error {
	c.mu.Lock()
	c.muted = muted
	percent := c.volume
	c.mu.Unlock()

	_, err := c.server.ClientVolume(ctx, c.id, volumeStatus{Percent: percent, Muted: muted})
	if err != nil {
		return err
	}
	c.server.logger.Debug("set muted", "muted", muted, "client", c.FriendlyName())
	return nil
}

// SetVolume sets the volume percent and notifies the owning group's
// observer. Values outside [0,100] are rejected before any state change or
// network I/O.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	return c.setVolume(ctx, percent, true)
}

func (c *Client) setVolume(ctx context.Context, percent int, updateGroup bool) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %d", ErrVolumeOutOfRange, percent)
	}

	c.mu.Lock()
	c.volume = percent
	muted := c.muted
	c.mu.Unlock()

	_, err := c.server.ClientVolume(ctx, c.id, volumeStatus{Percent: percent, Muted: muted})
	if err != nil {
		return err
	}
	if updateGroup {
		if group := c.Group(); group != nil {
			group.invokeCallback()
		}
	}
	c.server.logger.Debug("set volume", "volume", percent, "client", c.FriendlyName())
	return nil
}

// Snapshot captures the current {name, volume, muted, latency} so Restore
// can reapply them later.
func (c *Client) Snapshot() {
	c.mu.Lock()
	c.snapshot = &clientSnapshot{
		name:    c.name,
		volume:  c.volume,
		muted:   c.muted,
		latency: c.latency,
	}
	c.mu.Unlock()
	c.server.logger.Debug("took snapshot", "client", c.FriendlyName())
}

// Restore reapplies the snapshotted state in order: name, volume, muted,
// latency. A client without a snapshot is a no-op.
func (c *Client) Restore(ctx context.Context) error {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()
	if snap == nil {
		return nil
	}

	if err := c.SetName(ctx, snap.name); err != nil {
		return err
	}
	if err := c.SetVolume(ctx, snap.volume); err != nil {
		return err
	}
	if err := c.SetMuted(ctx, snap.muted); err != nil {
		return err
	}
	if err := c.SetLatency(ctx, snap.latency); err != nil {
		return err
	}
	c.invokeCallback()
	c.server.logger.Debug("restored snapshot", "client", c.FriendlyName())
	return nil
}

// updateVolume applies a coordinator-pushed volume change and notifies both
// the client's and the owning group's observers.
func (c *Client) updateVolume(volume volumeStatus) {
	c.mu.Lock()
	c.volume = volume.Percent
	c.muted = volume.Muted
	c.mu.Unlock()

	if group := c.Group(); group != nil {
		group.invokeCallback()
	}
	c.invokeCallback()
}

// updateName applies a coordinator-pushed name change.
func (c *Client) updateName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	c.invokeCallback()
}

// updateLatency applies a coordinator-pushed latency change.
func (c *Client) updateLatency(latency int) {
	c.mu.Lock()
	c.latency = latency
	c.mu.Unlock()
	c.invokeCallback()
}

// updateConnected applies a coordinator-pushed connectivity change.
func (c *Client) updateConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
	c.invokeCallback()
}

// SetCallback registers the client's single observer slot. Re-registration
// overwrites; it does not add a subscriber.
func (c *Client) SetCallback(fn func(*Client)) {
	c.mu.Lock()
	c.callback = fn
	c.mu.Unlock()
}

func (c *Client) invokeCallback() {
	c.mu.RLock()
	fn := c.callback
	c.mu.RUnlock()
	if fn != nil {
		fn(c)
	}
}

// String returns a debug representation.
func (c *Client) String() string {
	return fmt.Sprintf("Client %s (%s, %s)", c.Version(), c.FriendlyName(), c.id)
}
