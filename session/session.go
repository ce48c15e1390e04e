/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session owns the peer link between the two players: identity
// registration, pairing, the data channel, and the lifecycle around them.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Seednode/bellpath/protocol"
	"github.com/Seednode/bellpath/puzzle"
	"github.com/rs/zerolog"
)

var (
	ErrIdentityUnavailable = errors.New("session: no identity could be registered")
	ErrHandshake           = errors.New("session: handshake failed")
	ErrNoNetwork           = errors.New("session: no network configured")
	ErrNoRoomCode          = errors.New("session: guest needs a room code")
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdentified
	StatePaired
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateIdentified:
		return "identified"
	case StatePaired:
		return "paired"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Config struct {
	Role     puzzle.Role
	RoomCode string

	Network Network
	Store   Store
	Guard   UnloadGuard
	Logger  zerolog.Logger

	HandshakeTimeout time.Duration

	NewHostID  func() (string, error)
	NewGuestID func() string
}

func DefaultConfig() Config {
	return Config{
		Store:            NewMemoryStore("default"),
		Guard:            NopGuard,
		Logger:           zerolog.Nop(),
		HandshakeTimeout: 15 * time.Second,
		NewHostID:        NewRoomCode,
		NewGuestID:       NewGuestID,
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Store == nil {
		cfg.Store = def.Store
	}
	if cfg.Guard == nil {
		cfg.Guard = def.Guard
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.NewHostID == nil {
		cfg.NewHostID = def.NewHostID
	}
	if cfg.NewGuestID == nil {
		cfg.NewGuestID = def.NewGuestID
	}
	return cfg
}

// Session is one player's end of the peer link. Callbacks run serially on
// the session's goroutine, in arrival order.
type Session struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	localID  string
	roomCode string
	peer     Peer
	channel  Channel
	guarded  bool
	cancel   context.CancelFunc
	done     chan struct{}

	cbMu         sync.Mutex
	onMessage    []func(protocol.Packet)
	onOpen       []func(string)
	onConnected  []func()
	onDisconnect []func()
	onError      []func(error)
}

func New(cfg Config) (*Session, error) {
	cfg = normalizeConfig(cfg)

	if !cfg.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", puzzle.ErrInvalidRole, cfg.Role)
	}
	if cfg.Network == nil {
		return nil, ErrNoNetwork
	}
	if cfg.Role == puzzle.RoleB && cfg.RoomCode == "" {
		return nil, ErrNoRoomCode
	}

	return &Session{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("role", cfg.Role.String()).Logger(),
		roomCode: cfg.RoomCode,
	}, nil
}

func (s *Session) Role() puzzle.Role { return s.cfg.Role }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) LocalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.localID
}

// RoomCode is the code a guest types in. For the host it is its own identity.
func (s *Session) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roomCode
}

func (s *Session) OnMessage(fn func(protocol.Packet)) {
	s.cbMu.Lock()
	s.onMessage = append(s.onMessage, fn)
	s.cbMu.Unlock()
}

func (s *Session) OnOpen(fn func(id string)) {
	s.cbMu.Lock()
	s.onOpen = append(s.onOpen, fn)
	s.cbMu.Unlock()
}

func (s *Session) OnConnected(fn func()) {
	s.cbMu.Lock()
	s.onConnected = append(s.onConnected, fn)
	s.cbMu.Unlock()
}

func (s *Session) OnDisconnect(fn func()) {
	s.cbMu.Lock()
	s.onDisconnect = append(s.onDisconnect, fn)
	s.cbMu.Unlock()
}

func (s *Session) OnError(fn func(error)) {
	s.cbMu.Lock()
	s.onError = append(s.onError, fn)
	s.cbMu.Unlock()
}

// Connect starts the handshake for this session's role and returns at once.
// Calling it while a handshake or connection is live does nothing.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = StateConnecting
	s.mu.Unlock()

	s.log.Debug().Msg("connecting")

	go s.run(ctx, gen, done)
}

// Send encodes msg and queues it on the channel. It is a silent no-op unless
// the session is connected.
func (s *Session) Send(msg protocol.Message) {
	s.mu.Lock()
	ch := s.channel
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected || ch == nil {
		return
	}

	data, err := protocol.Encode(msg, time.Now())
	if err != nil {
		s.log.Debug().Err(err).Msg("dropping unencodable message")
		return
	}

	if err := ch.Send(data); err != nil {
		s.log.Debug().Err(err).Str("kind", string(msg.Kind())).Msg("send dropped")
	}
}

// Resume re-checks the link after the process comes back to the foreground.
func (s *Session) Resume(ctx context.Context) {
	s.mu.Lock()
	peer, ch, state := s.peer, s.channel, s.state
	s.mu.Unlock()

	if peer != nil && peer.Disconnected() {
		if err := peer.Reconnect(ctx); err != nil {
			s.log.Debug().Err(err).Msg("broker reconnect failed")
		} else {
			s.log.Debug().Msg("broker link restored")
		}
	}

	if state == StateConnected && ch != nil && !ch.Open() {
		s.log.Info().Msg("channel found closed on resume")

		s.mu.Lock()
		if s.channel == ch {
			s.state = StateDisconnected
		}
		s.mu.Unlock()

		// The read loop sees the close and finishes the teardown.
		_ = ch.Close()
	}
}

// Disconnect tears the session down and forgets the persisted identity. It
// waits for a running callback to return, and none fires after it returns.
// Callbacks must call Leave instead.
func (s *Session) Disconnect() {
	s.stop(true)
}

// Leave is Disconnect without the wait, for use inside a callback.
func (s *Session) Leave() {
	s.stop(false)
}

func (s *Session) stop(wait bool) {
	s.mu.Lock()
	s.gen++
	cancel, done := s.cancel, s.done
	peer, ch := s.peer, s.channel
	guarded := s.guarded
	s.cancel, s.done = nil, nil
	s.peer, s.channel = nil, nil
	s.guarded = false
	s.state = StateDisconnected
	s.mu.Unlock()

	if guarded {
		s.cfg.Guard.Remove()
	}
	if cancel != nil {
		cancel()
	}
	if ch != nil {
		_ = ch.Close()
	}
	if peer != nil {
		_ = peer.Close()
	}
	if err := s.cfg.Store.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("could not clear stored session")
	}

	if wait && done != nil {
		<-done
	}

	s.log.Debug().Msg("disconnected")
}

func (s *Session) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	peer, err := s.register(ctx)
	if err != nil {
		s.fail(ctx, gen, err)
		return
	}

	if !s.advance(gen, StateIdentified, func() { s.peer = peer; s.localID = peer.ID() }) {
		_ = peer.Close()
		return
	}

	if s.cfg.Role == puzzle.RoleA {
		s.setRoomCode(peer.ID())
		s.persist(Record{Role: puzzle.RoleA, RoomCode: peer.ID(), HostID: peer.ID()})
	} else {
		s.persist(Record{Role: puzzle.RoleB, RoomCode: s.RoomCode()})
	}

	s.log.Info().Str("id", peer.ID()).Msg("registered with broker")
	s.emitOpen(gen, peer.ID())

	ch, err := s.pair(ctx, peer)
	if err != nil {
		s.fail(ctx, gen, fmt.Errorf("%w: %w", ErrHandshake, err))
		return
	}

	if !s.advance(gen, StatePaired, func() { s.channel = ch }) {
		_ = ch.Close()
		return
	}

	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	err = ch.Ready(readyCtx)
	cancel()
	if err != nil {
		s.fail(ctx, gen, fmt.Errorf("%w: %w", ErrHandshake, err))
		return
	}

	if !s.advance(gen, StateConnected, func() {
		s.guarded = true
		s.cfg.Guard.Install()
	}) {
		return
	}

	s.log.Info().Msg("peer connected")
	s.emitConnected(gen)

	s.readLoop(ctx, gen, ch)
}

// register claims an identity. A host first tries its stored identity; a
// collision clears the store and retries once with a fresh one.
func (s *Session) register(ctx context.Context) (Peer, error) {
	if s.cfg.Role == puzzle.RoleB {
		return s.cfg.Network.Open(ctx, s.cfg.NewGuestID())
	}

	id := ""
	if rec, ok, err := s.cfg.Store.Load(); err != nil {
		s.log.Warn().Err(err).Msg("could not load stored session")
	} else if ok && rec.Role == puzzle.RoleA && rec.HostID != "" {
		id = rec.HostID
		s.log.Debug().Str("id", id).Msg("reusing stored identity")
	}

	if id == "" {
		fresh, err := s.cfg.NewHostID()
		if err != nil {
			return nil, err
		}
		id = fresh
	}

	peer, err := s.cfg.Network.Open(ctx, id)
	if !errors.Is(err, ErrIDTaken) {
		return peer, err
	}

	s.log.Info().Str("id", id).Msg("identity taken, retrying with a fresh one")
	if err := s.cfg.Store.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("could not clear stored session")
	}

	fresh, err := s.cfg.NewHostID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
	}

	peer, err = s.cfg.Network.Open(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
	}

	return peer, nil
}

func (s *Session) pair(ctx context.Context, peer Peer) (Channel, error) {
	if s.cfg.Role == puzzle.RoleA {
		return peer.Accept(ctx)
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	return peer.Dial(dialCtx, s.RoomCode())
}

func (s *Session) readLoop(ctx context.Context, gen uint64, ch Channel) {
	for {
		data, err := ch.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			s.log.Info().Err(err).Msg("channel closed")
			s.teardown(gen)
			s.emitDisconnect(gen)
			return
		}

		packet, err := protocol.Decode(data)
		if err != nil {
			s.log.Debug().Err(err).Msg("ignoring undecodable message")
			continue
		}

		s.emitMessage(gen, packet)
	}
}

// advance moves to state if gen is still current.
func (s *Session) advance(gen uint64, state State, with func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return false
	}
	if with != nil {
		with()
	}
	s.state = state

	return true
}

// teardown drops everything belonging to gen after the link failed.
func (s *Session) teardown(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	peer, ch := s.peer, s.channel
	guarded := s.guarded
	s.peer, s.channel = nil, nil
	s.guarded = false
	s.state = StateDisconnected
	s.mu.Unlock()

	if guarded {
		s.cfg.Guard.Remove()
	}
	if ch != nil {
		_ = ch.Close()
	}
	if peer != nil {
		_ = peer.Close()
	}
	if err := s.cfg.Store.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("could not clear stored session")
	}
}

func (s *Session) fail(ctx context.Context, gen uint64, err error) {
	if ctx.Err() != nil {
		return
	}

	s.log.Error().Err(err).Msg("session failed")
	s.teardown(gen)
	s.emitError(gen, err)
}

func (s *Session) persist(r Record) {
	if err := s.cfg.Store.Save(r); err != nil {
		s.log.Warn().Err(err).Msg("could not persist session")
	}
}

func (s *Session) setRoomCode(code string) {
	s.mu.Lock()
	s.roomCode = code
	s.mu.Unlock()
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gen == gen
}

func (s *Session) dispatch(gen uint64, fn func()) {
	if !s.current(gen) {
		return
	}

	fn()
}

func (s *Session) emitMessage(gen uint64, p protocol.Packet) {
	s.cbMu.Lock()
	fns := slices.Clone(s.onMessage)
	s.cbMu.Unlock()

	for _, fn := range fns {
		s.dispatch(gen, func() { fn(p) })
	}
}

func (s *Session) emitOpen(gen uint64, id string) {
	s.cbMu.Lock()
	fns := slices.Clone(s.onOpen)
	s.cbMu.Unlock()

	for _, fn := range fns {
		s.dispatch(gen, func() { fn(id) })
	}
}

func (s *Session) emitConnected(gen uint64) {
	s.cbMu.Lock()
	fns := slices.Clone(s.onConnected)
	s.cbMu.Unlock()

	for _, fn := range fns {
		s.dispatch(gen, fn)
	}
}

func (s *Session) emitDisconnect(gen uint64) {
	s.cbMu.Lock()
	fns := slices.Clone(s.onDisconnect)
	s.cbMu.Unlock()

	for _, fn := range fns {
		s.dispatch(gen, fn)
	}
}

func (s *Session) emitError(gen uint64, err error) {
	s.cbMu.Lock()
	fns := slices.Clone(s.onError)
	s.cbMu.Unlock()

	for _, fn := range fns {
		s.dispatch(gen, func() { fn(err) })
	}
}
