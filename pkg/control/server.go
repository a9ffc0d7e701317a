package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/aircast-dev/aircast/pkg/transport"
)

// Server is the live mirror of the coordinator: the root aggregate owning
// the group, client, and stream collections, plus the session controller
// that keeps the mirror alive across reconnects.
//
// All three collections are replaced at a single swap point under one lock,
// so a reader never observes a half-applied snapshot.
type Server struct {
	config *Config
	logger *slog.Logger

	mu       sync.RWMutex
	stopped  bool
	version  string
	groups   map[string]*Group
	clients  map[string]*Client
	streams  map[string]*Stream
	conn     transport.Conn
	engine   *Engine

	cbMu         sync.RWMutex
	onUpdate     func()
	onConnect    func()
	onDisconnect func(error)
	onNewClient  func(*Client)
}

// NewServer builds a control session for the configured coordinator. No
// connection is made until Start.
func NewServer(config *Config) *Server {
	config = config.withDefaults()
	return &Server{
		config:  config,
		logger:  config.Logger.With("coordinator", config.Host),
		stopped: true,
		groups:  make(map[string]*Group),
		clients: make(map[string]*Client),
		streams: make(map[string]*Stream),
	}
}

// Start connects, fetches the initial status, and synchronizes the mirror.
// A coordinator that accepts the connection but never yields a valid status
// payload fails the handshake with ErrHandshake.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.handshake(ctx); err != nil {
		s.Stop()
		return err
	}
	s.handleConnect()
	return nil
}

// Stop tears the session down: the connection closes, every pending caller
// is released with a connection-lost error, and the mirror is cleared. No
// reconnect is scheduled after an explicit Stop.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	conn := s.conn
	s.conn = nil
	s.engine = nil
	s.version = ""
	s.groups = make(map[string]*Group)
	s.clients = make(map[string]*Client)
	s.streams = make(map[string]*Stream)
	s.mu.Unlock()

	s.logger.Debug("stopping")
	if conn != nil {
		conn.Close()
	}
	s.config.Metrics.SetConnected(false)
}

// connect dials the configured binding and installs a fresh engine.
func (s *Server) connect(ctx context.Context) error {
	engine := NewEngine(s.notificationHandlers(), s.handleDisconnect,
		s.logger, s.config.Metrics, s.config.Tracer)

	var (
		conn transport.Conn
		err  error
	)
	switch s.config.Binding {
	case BindingWebSocket:
		url := transport.WebSocketURL(s.config.Host, s.config.Port)
		conn, err = transport.DialWebSocket(ctx, url, engine, s.config.Transport)
	default:
		addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
		conn, err = transport.DialTCP(ctx, addr, engine, s.config.Transport)
	}
	if err != nil {
		return err
	}
	engine.Attach(conn)

	s.mu.Lock()
	s.conn = conn
	s.engine = engine
	s.mu.Unlock()

	s.config.Metrics.SetConnected(true)
	s.logger.Debug("connected", "binding", s.config.Binding.String(), "port", s.config.Port)
	return nil
}

// handshake fetches the initial status and applies it. Any shape other
// than a payload with the expected top-level server key counts as a failed
// connect.
func (s *Server) handshake(ctx context.Context) error {
	status, err := s.Status(ctx)
	if err != nil {
		s.logger.Warn("connected, but no valid response", "error", err)
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if err := s.Synchronize(status); err != nil {
		s.logger.Warn("connected, but no valid response", "error", err)
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	return nil
}

// handleConnect fires the session-level connect observer.
func (s *Server) handleConnect() {
	s.logger.Debug("coordinator connected")
	s.cbMu.RLock()
	fn := s.onConnect
	s.cbMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// handleDisconnect runs after the engine released all pending calls. It
// fires the user observer and, unless the session was stopped on purpose,
// schedules a reconnect attempt after the fixed delay.
func (s *Server) handleDisconnect(err error) {
	s.logger.Debug("coordinator disconnected", "error", err)
	s.config.Metrics.SetConnected(false)

	s.mu.Lock()
	s.conn = nil
	s.engine = nil
	stopped := s.stopped
	s.mu.Unlock()

	s.cbMu.RLock()
	fn := s.onDisconnect
	s.cbMu.RUnlock()
	if fn != nil {
		fn(err)
	}

	if !stopped && s.config.Reconnect {
		s.scheduleReconnect()
	}
}

func (s *Server) scheduleReconnect() {
	time.AfterFunc(s.config.ReconnectDelay, s.tryReconnect)
}

// tryReconnect attempts one reconnect. A dial failure reschedules directly.
// A connect that succeeds at the transport layer but fails the handshake is
// torn down; the resulting disconnect signal schedules the next attempt.
func (s *Server) tryReconnect() {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	s.logger.Debug("try reconnect")
	s.config.Metrics.RecordReconnect()

	ctx := context.Background()
	if err := s.connect(ctx); err != nil {
		s.logger.Debug("reconnect failed", "error", err)
		s.scheduleReconnect()
		return
	}
	if err := s.handshake(ctx); err != nil {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	s.handleConnect()
}

// transact issues one raw RPC against the live engine.
func (s *Server) transact(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		return nil, ErrNotConnected
	}
	return engine.Request(ctx, method, params)
}

// request issues an RPC whose params carry an entity id plus one key/value
// pair and optional extra parameters. When the result object echoes the
// key, its value is returned directly.
func (s *Server) request(ctx context.Context, method, identifier, key string, value any, extra map[string]any) (json.RawMessage, error) {
	params := map[string]any{"id": identifier}
	if key != "" && value != nil {
		params[key] = value
	}
	for k, v := range extra {
		params[k] = v
	}

	result, err := s.transact(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if inner, ok := resultField(result, key); ok {
			return inner, nil
		}
	}
	return result, nil
}

// resultField extracts one field from a JSON object result.
func resultField(result json.RawMessage, key string) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, false
	}
	inner, ok := fields[key]
	return inner, ok
}

// versionCheck fails fast when a gated method is not supported by the
// connected coordinator, before any network I/O.
func (s *Server) versionCheck(method string) error {
	required, gated := methodVersions[method]
	if !gated {
		return nil
	}
	actual := s.Version()
	if actual == "" || semver.Compare("v"+actual, "v"+required) < 0 {
		return &VersionError{Method: method, Required: required, Actual: actual}
	}
	return nil
}

// Status fetches the full coordinator status snapshot.
func (s *Server) Status(ctx context.Context) (json.RawMessage, error) {
	return s.transact(ctx, MethodServerGetStatus, nil)
}

// RPCVersion fetches the coordinator's RPC protocol version.
func (s *Server) RPCVersion(ctx context.Context) (json.RawMessage, error) {
	return s.transact(ctx, MethodServerGetRPCVersion, nil)
}

// Refresh refetches the status snapshot and synchronizes the mirror.
func (s *Server) Refresh(ctx context.Context) error {
	status, err := s.Status(ctx)
	if err != nil {
		return err
	}
	return s.Synchronize(status)
}

// DeleteClient removes a client from the coordinator. The response carries
// the new full status, which is synchronized immediately.
func (s *Server) DeleteClient(ctx context.Context, identifier string) error {
	result, err := s.transact(ctx, MethodServerDeleteClient, map[string]any{"id": identifier})
	if err != nil {
		return err
	}
	if _, ok := resultField(result, "server"); ok {
		return s.Synchronize(result)
	}
	return nil
}

// ClientName sets a client's display name.
func (s *Server) ClientName(ctx context.Context, identifier, name string) (json.RawMessage, error) {
	return s.request(ctx, MethodClientSetName, identifier, "name", name, nil)
}

// ClientLatency sets a client's latency.
func (s *Server) ClientLatency(ctx context.Context, identifier string, latency int) (json.RawMessage, error) {
	return s.request(ctx, MethodClientSetLatency, identifier, "latency", latency, nil)
}

// ClientVolume sets a client's volume object.
func (s *Server) ClientVolume(ctx context.Context, identifier string, volume volumeStatus) (json.RawMessage, error) {
	return s.request(ctx, MethodClientSetVolume, identifier, "volume", volume, nil)
}

// ClientStatus fetches one client's status object.
func (s *Server) ClientStatus(ctx context.Context, identifier string) (json.RawMessage, error) {
	return s.request(ctx, MethodClientGetStatus, identifier, "client", nil, nil)
}

// GroupStatus fetches one group's status object.
func (s *Server) GroupStatus(ctx context.Context, identifier string) (json.RawMessage, error) {
	return s.request(ctx, MethodGroupGetStatus, identifier, "group", nil, nil)
}

// GroupMute sets a group's mute flag.
func (s *Server) GroupMute(ctx context.Context, identifier string, mute bool) (json.RawMessage, error) {
	return s.request(ctx, MethodGroupSetMute, identifier, "mute", mute, nil)
}

// GroupStream binds a group to a stream.
func (s *Server) GroupStream(ctx context.Context, identifier, streamID string) (json.RawMessage, error) {
	return s.request(ctx, MethodGroupSetStream, identifier, "stream_id", streamID, nil)
}

// GroupClients sets a group's member list.
func (s *Server) GroupClients(ctx context.Context, identifier string, clients []string) (json.RawMessage, error) {
	return s.request(ctx, MethodGroupSetClients, identifier, "clients", clients, nil)
}

// GroupName sets a group's name. Requires coordinator >= 0.16.0.
func (s *Server) GroupName(ctx context.Context, identifier, name string) (json.RawMessage, error) {
	if err := s.versionCheck(MethodGroupSetName); err != nil {
		return nil, err
	}
	return s.request(ctx, MethodGroupSetName, identifier, "name", name, nil)
}

// StreamControl sends a playback control command to a stream. Requires
// coordinator >= 0.26.0.
func (s *Server) StreamControl(ctx context.Context, identifier, command string, params map[string]any) (json.RawMessage, error) {
	if err := s.versionCheck(MethodStreamControl); err != nil {
		return nil, err
	}
	return s.request(ctx, MethodStreamControl, identifier, "command", command, params)
}

// StreamSetMeta sets a stream's legacy metadata tags.
//
// Deprecated: use StreamSetProperty on coordinators >= 0.26.0.
func (s *Server) StreamSetMeta(ctx context.Context, identifier string, meta map[string]any) (json.RawMessage, error) {
	return s.request(ctx, MethodStreamSetMeta, identifier, "meta", meta, nil)
}

// StreamSetProperty sets one stream property. Requires coordinator
// >= 0.26.0.
func (s *Server) StreamSetProperty(ctx context.Context, identifier, property string, value any) (json.RawMessage, error) {
	if err := s.versionCheck(MethodStreamSetProperty); err != nil {
		return nil, err
	}
	return s.request(ctx, MethodStreamSetProperty, identifier, "", nil, map[string]any{
		"property": property,
		"value":    value,
	})
}

// StreamAddStream registers a new stream by URI. Requires coordinator
// >= 0.16.0. On success the mirror is refreshed so the stream appears.
func (s *Server) StreamAddStream(ctx context.Context, streamURI string) (json.RawMessage, error) {
	if err := s.versionCheck(MethodStreamAddStream); err != nil {
		return nil, err
	}
	result, err := s.transact(ctx, MethodStreamAddStream, map[string]any{"streamUri": streamURI})
	if err != nil {
		return nil, err
	}
	if _, ok := resultField(result, "id"); ok {
		if err := s.Refresh(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// StreamRemoveStream removes a stream. Requires coordinator >= 0.16.0.
// On success the mirror is refreshed so the stream disappears.
func (s *Server) StreamRemoveStream(ctx context.Context, identifier string) (json.RawMessage, error) {
	if err := s.versionCheck(MethodStreamRemoveStream); err != nil {
		return nil, err
	}
	result, err := s.request(ctx, MethodStreamRemoveStream, identifier, "", nil, nil)
	if err != nil {
		return nil, err
	}
	if _, ok := resultField(result, "id"); ok {
		if err := s.Refresh(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Version returns the coordinator version, empty until the first
// synchronize.
func (s *Server) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Group returns a group by identifier.
func (s *Server) Group(identifier string) (*Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[identifier]
	return g, ok
}

// Client returns a client by identifier.
func (s *Server) Client(identifier string) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[identifier]
	return c, ok
}

// Stream returns a stream by identifier.
func (s *Server) Stream(identifier string) (*Stream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[identifier]
	return st, ok
}

// Groups returns all groups, ordered by identifier.
func (s *Server) Groups() []*Group {
	s.mu.RLock()
	out := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier() < out[j].Identifier() })
	return out
}

// Clients returns all clients, ordered by identifier.
func (s *Server) Clients() []*Client {
	s.mu.RLock()
	out := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier() < out[j].Identifier() })
	return out
}

// Streams returns all streams, ordered by identifier.
func (s *Server) Streams() []*Stream {
	s.mu.RLock()
	out := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier() < out[j].Identifier() })
	return out
}

// groupOfClient finds the group listing a client as member, by scanning
// membership lists rather than following a stored pointer.
func (s *Server) groupOfClient(clientID string) *Group {
	for _, group := range s.Groups() {
		for _, id := range group.Clients() {
			if id == clientID {
				return group
			}
		}
	}
	return nil
}

// Synchronize reconciles the mirror against a full status snapshot.
// Entities already known keep their identity: the incoming fields are
// copied into the existing instance so externally-held references and
// registered callbacks survive. A client absent from every group in the
// snapshot is dropped. The three collections are replaced at one swap
// point.
func (s *Server) Synchronize(status json.RawMessage) error {
	var env statusEnvelope
	if err := json.Unmarshal(status, &env); err != nil {
		return fmt.Errorf("control: malformed status: %w", err)
	}
	if env.Server == nil {
		return fmt.Errorf("control: status missing server key")
	}

	s.mu.Lock()
	s.version = env.Server.Server.Snapserver.Version

	newStreams := make(map[string]*Stream, len(env.Server.Streams))
	for _, data := range env.Server.Streams {
		if existing, ok := s.streams[data.ID]; ok {
			existing.apply(data)
			newStreams[data.ID] = existing
		} else {
			newStreams[data.ID] = newStream(data)
		}
		s.logger.Debug("stream found", "stream", data.ID)
	}

	newGroups := make(map[string]*Group, len(env.Server.Groups))
	newClients := make(map[string]*Client)
	for _, data := range env.Server.Groups {
		if existing, ok := s.groups[data.ID]; ok {
			existing.apply(data)
			newGroups[data.ID] = existing
		} else {
			newGroups[data.ID] = newGroup(s, data)
		}
		for _, clientData := range data.Clients {
			if existing, ok := s.clients[clientData.ID]; ok {
				existing.apply(clientData)
				newClients[clientData.ID] = existing
			} else {
				newClients[clientData.ID] = newClient(s, clientData)
			}
			s.logger.Debug("client found", "client", clientData.ID)
		}
		s.logger.Debug("group found", "group", data.ID)
	}

	s.groups = newGroups
	s.clients = newClients
	s.streams = newStreams
	s.mu.Unlock()

	s.config.Metrics.RecordSynchronize()
	return nil
}

// SetOnUpdate registers the observer fired after every server-pushed full
// update. Single slot; last registration wins.
func (s *Server) SetOnUpdate(fn func()) {
	s.cbMu.Lock()
	s.onUpdate = fn
	s.cbMu.Unlock()
}

// SetOnConnect registers the observer fired after every successful connect
// and synchronize. Single slot; last registration wins.
func (s *Server) SetOnConnect(fn func()) {
	s.cbMu.Lock()
	s.onConnect = fn
	s.cbMu.Unlock()
}

// SetOnDisconnect registers the observer fired when the connection drops.
// The error is nil for an intentional Stop. Single slot; last registration
// wins.
func (s *Server) SetOnDisconnect(fn func(error)) {
	s.cbMu.Lock()
	s.onDisconnect = fn
	s.cbMu.Unlock()
}

// SetOnNewClient registers the observer fired when a client never seen
// before connects. Single slot; last registration wins.
func (s *Server) SetOnNewClient(fn func(*Client)) {
	s.cbMu.Lock()
	s.onNewClient = fn
	s.cbMu.Unlock()
}

// String returns a debug representation.
func (s *Server) String() string {
	return fmt.Sprintf("Server %s (%s)", s.Version(), s.config.Host)
}
