/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seednode/bellpath/protocol"
	"github.com/Seednode/bellpath/puzzle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type events struct {
	open       chan string
	connected  chan struct{}
	disconnect chan struct{}
	errs       chan error
	msgs       chan protocol.Packet
}

func watch(s *Session) *events {
	e := &events{
		open:       make(chan string, 8),
		connected:  make(chan struct{}, 8),
		disconnect: make(chan struct{}, 8),
		errs:       make(chan error, 8),
		msgs:       make(chan protocol.Packet, 64),
	}

	s.OnOpen(func(id string) { e.open <- id })
	s.OnConnected(func() { e.connected <- struct{}{} })
	s.OnDisconnect(func() { e.disconnect <- struct{}{} })
	s.OnError(func(err error) { e.errs <- err })
	s.OnMessage(func(p protocol.Packet) { e.msgs <- p })

	return e
}

func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}

	var zero T
	return zero
}

type countingGuard struct {
	installed atomic.Int32
	removed   atomic.Int32
}

func (g *countingGuard) Install() { g.installed.Add(1) }
func (g *countingGuard) Remove()  { g.removed.Add(1) }

// armedGuard tracks whether it is armed and can hold Install open.
type armedGuard struct {
	mu         sync.Mutex
	armed      bool
	installing chan struct{}
	proceed    chan struct{}
}

func (g *armedGuard) Install() {
	close(g.installing)
	<-g.proceed

	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
}

func (g *armedGuard) Remove() {
	g.mu.Lock()
	g.armed = false
	g.mu.Unlock()
}

func (g *armedGuard) isArmed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.armed
}

func fixedIDs(ids ...string) func() (string, error) {
	var n atomic.Int32
	return func() (string, error) {
		i := int(n.Add(1)) - 1
		if i >= len(ids) {
			i = len(ids) - 1
		}
		return ids[i], nil
	}
}

func newHost(t *testing.T, net Network, store Store, ids ...string) (*Session, *events) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Role = puzzle.RoleA
	cfg.Network = net
	cfg.Store = store
	cfg.HandshakeTimeout = 200 * time.Millisecond
	if len(ids) > 0 {
		cfg.NewHostID = fixedIDs(ids...)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Disconnect)

	return s, watch(s)
}

func newGuest(t *testing.T, net Network, code string) (*Session, *events) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Role = puzzle.RoleB
	cfg.RoomCode = code
	cfg.Network = net
	cfg.Store = NewMemoryStore(t.Name() + "/guest")
	cfg.HandshakeTimeout = 200 * time.Millisecond

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Disconnect)

	return s, watch(s)
}

func connectPair(t *testing.T, net *MemoryNetwork) (*Session, *events, *Session, *events) {
	t.Helper()

	host, he := newHost(t, net, NewMemoryStore(t.Name()+"/host"), "ROOM1")
	host.Connect(context.Background())
	code := recv(t, he.open, "host open")

	guest, ge := newGuest(t, net, code)
	guest.Connect(context.Background())

	recv(t, he.connected, "host connected")
	recv(t, ge.connected, "guest connected")

	return host, he, guest, ge
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Role: puzzle.RoleA})
	assert.ErrorIs(t, err, ErrNoNetwork)

	_, err = New(Config{Role: "player9", Network: NewMemoryNetwork()})
	assert.ErrorIs(t, err, puzzle.ErrInvalidRole)

	_, err = New(Config{Role: puzzle.RoleB, Network: NewMemoryNetwork()})
	assert.ErrorIs(t, err, ErrNoRoomCode)
}

func TestHostAndGuestExchangeInOrder(t *testing.T) {
	net := NewMemoryNetwork()
	host, he, guest, ge := connectPair(t, net)

	assert.Equal(t, StateConnected, host.State())
	assert.Equal(t, StateConnected, guest.State())
	assert.Equal(t, "ROOM1", host.RoomCode())
	assert.Equal(t, "ROOM1", guest.RoomCode())
	assert.NotEqual(t, host.LocalID(), guest.LocalID())

	for i := range 10 {
		host.Send(protocol.PlayerMove{Role: puzzle.RoleA, Position: puzzle.Vec{X: float64(i)}})
	}
	for i := range 10 {
		p := recv(t, ge.msgs, "player_move")
		move, ok := p.Message.(protocol.PlayerMove)
		require.True(t, ok)
		assert.Equal(t, float64(i), move.Position.X)
	}

	guest.Send(protocol.NotePlay{Note: puzzle.Shang})
	p := recv(t, he.msgs, "note_play")
	assert.Equal(t, protocol.NotePlay{Note: puzzle.Shang}, p.Message)
}

func TestSendBeforeConnectedIsDropped(t *testing.T) {
	net := NewMemoryNetwork()
	host, he := newHost(t, net, NewMemoryStore(t.Name()), "EARLY")

	host.Send(protocol.PuzzleSolved{PuzzleGroup: "red"})
	host.Connect(context.Background())
	recv(t, he.open, "host open")
	host.Send(protocol.PuzzleSolved{PuzzleGroup: "red"})

	guest, ge := newGuest(t, net, "EARLY")
	guest.Connect(context.Background())
	recv(t, ge.connected, "guest connected")

	select {
	case p := <-ge.msgs:
		t.Fatalf("unexpected message %v", p.Message)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHostReusesStoredIdentity(t *testing.T) {
	net := NewMemoryNetwork()
	store := NewMemoryStore(t.Name())
	require.NoError(t, store.Save(Record{Role: puzzle.RoleA, RoomCode: "KEEPME", HostID: "KEEPME"}))

	host, he := newHost(t, net, store, "FRESH")
	host.Connect(context.Background())

	assert.Equal(t, "KEEPME", recv(t, he.open, "host open"))
	assert.Equal(t, StateIdentified, host.State())
}

func TestIdentityCollisionRetriesWithFreshCode(t *testing.T) {
	net := NewMemoryNetwork()
	store := NewMemoryStore(t.Name())
	require.NoError(t, store.Save(Record{Role: puzzle.RoleA, RoomCode: "OLD", HostID: "OLD"}))

	// A previous process still holds the old identity.
	squatter, err := net.Open(context.Background(), "OLD")
	require.NoError(t, err)
	defer squatter.Close()

	host, he := newHost(t, net, store, "NEW")
	host.Connect(context.Background())

	assert.Equal(t, "NEW", recv(t, he.open, "host open"))
	assert.Equal(t, "NEW", host.RoomCode())

	rec, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "NEW", rec.HostID)

	stale, se := newGuest(t, net, "OLD")
	stale.Connect(context.Background())
	assert.ErrorIs(t, recv(t, se.errs, "stale guest error"), ErrHandshake)
	assert.Equal(t, StateDisconnected, stale.State())

	guest, ge := newGuest(t, net, "NEW")
	guest.Connect(context.Background())
	recv(t, ge.connected, "guest connected")
	recv(t, he.connected, "host connected")
}

func TestIdentityCollisionRetryFailsOnce(t *testing.T) {
	net := NewMemoryNetwork()

	squatter, err := net.Open(context.Background(), "SAME")
	require.NoError(t, err)
	defer squatter.Close()

	host, he := newHost(t, net, NewMemoryStore(t.Name()), "SAME")
	host.Connect(context.Background())

	assert.ErrorIs(t, recv(t, he.errs, "host error"), ErrIdentityUnavailable)
	assert.Equal(t, StateDisconnected, host.State())
	assert.Empty(t, he.open)
}

func TestGuestWithoutHostFailsHandshake(t *testing.T) {
	guest, ge := newGuest(t, NewMemoryNetwork(), "NOBODY")
	guest.Connect(context.Background())

	err := recv(t, ge.errs, "guest error")
	assert.ErrorIs(t, err, ErrHandshake)
	assert.ErrorIs(t, err, ErrPeerUnavailable)
}

func TestRemoteCloseDisconnectsAndClearsStore(t *testing.T) {
	net := NewMemoryNetwork()
	store := NewMemoryStore(t.Name())
	guard := &countingGuard{}

	cfg := DefaultConfig()
	cfg.Role = puzzle.RoleA
	cfg.Network = net
	cfg.Store = store
	cfg.Guard = guard
	cfg.NewHostID = fixedIDs("CLOSE")

	host, err := New(cfg)
	require.NoError(t, err)
	defer host.Disconnect()
	he := watch(host)

	host.Connect(context.Background())
	recv(t, he.open, "host open")

	_, ok, _ := store.Load()
	assert.True(t, ok)

	guest, ge := newGuest(t, net, "CLOSE")
	guest.Connect(context.Background())
	recv(t, ge.connected, "guest connected")
	recv(t, he.connected, "host connected")
	assert.EqualValues(t, 1, guard.installed.Load())

	guest.Disconnect()
	assert.Equal(t, StateDisconnected, guest.State())

	recv(t, he.disconnect, "host disconnect")
	assert.Equal(t, StateDisconnected, host.State())
	assert.EqualValues(t, 1, guard.removed.Load())

	_, ok, _ = store.Load()
	assert.False(t, ok)
	assert.False(t, net.Registered("CLOSE"))
	assert.Empty(t, he.errs)
}

func TestDisconnectSilencesCallbacks(t *testing.T) {
	net := NewMemoryNetwork()
	host, he, guest, ge := connectPair(t, net)

	host.Disconnect()
	guest.Send(protocol.LevelComplete{})

	recv(t, ge.disconnect, "guest disconnect")

	select {
	case <-he.disconnect:
		t.Fatal("host reported disconnect after explicit Disconnect")
	case <-he.msgs:
		t.Fatal("host received a message after Disconnect")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResumeRestoresBrokerLink(t *testing.T) {
	net := NewMemoryNetwork()
	host, _, guest, _ := connectPair(t, net)

	require.True(t, net.DropBroker(host.LocalID()))
	assert.False(t, net.Registered(host.LocalID()))

	host.Resume(context.Background())
	assert.True(t, net.Registered(host.LocalID()))
	assert.Equal(t, StateConnected, host.State())
	assert.Equal(t, StateConnected, guest.State())
}

func TestResumeNoticesClosedChannel(t *testing.T) {
	net := NewMemoryNetwork()
	host, he, _, _ := connectPair(t, net)

	host.mu.Lock()
	ch := host.channel
	host.mu.Unlock()
	require.NotNil(t, ch)

	ch.(*memoryChannel).pipe.close()

	host.Resume(context.Background())
	recv(t, he.disconnect, "host disconnect")
	assert.Equal(t, StateDisconnected, host.State())
}

func TestConnectIsIdempotentWhileLive(t *testing.T) {
	net := NewMemoryNetwork()
	host, he := newHost(t, net, NewMemoryStore(t.Name()), "ONCE", "TWICE")

	host.Connect(context.Background())
	recv(t, he.open, "host open")
	host.Connect(context.Background())

	assert.Equal(t, "ONCE", host.LocalID())
	assert.Empty(t, he.open)
}

func TestDisconnectWaitsForRunningCallback(t *testing.T) {
	net := NewMemoryNetwork()
	host, _, guest, _ := connectPair(t, net)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	host.OnMessage(func(protocol.Packet) {
		once.Do(func() { close(entered) })
		<-release
	})

	guest.Send(protocol.LevelComplete{})
	recv(t, entered, "callback entered")

	returned := make(chan struct{})
	go func() {
		host.Disconnect()
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("Disconnect returned while a callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	recv(t, returned, "Disconnect return")
	assert.Equal(t, StateDisconnected, host.State())
}

func TestLeaveFromCallback(t *testing.T) {
	net := NewMemoryNetwork()
	host, _, guest, ge := connectPair(t, net)

	left := make(chan struct{})
	host.OnMessage(func(protocol.Packet) {
		host.Leave()
		close(left)
	})

	guest.Send(protocol.LevelComplete{})
	recv(t, left, "leave inside callback")
	assert.Equal(t, StateDisconnected, host.State())
	recv(t, ge.disconnect, "guest disconnect")
}

func TestGuardIsNotLeftArmedByConcurrentDisconnect(t *testing.T) {
	net := NewMemoryNetwork()
	guard := &armedGuard{installing: make(chan struct{}), proceed: make(chan struct{})}

	cfg := DefaultConfig()
	cfg.Role = puzzle.RoleA
	cfg.Network = net
	cfg.Store = NewMemoryStore(t.Name())
	cfg.Guard = guard
	cfg.NewHostID = fixedIDs("GUARD")

	host, err := New(cfg)
	require.NoError(t, err)
	he := watch(host)

	host.Connect(context.Background())
	recv(t, he.open, "host open")

	guest, _ := newGuest(t, net, "GUARD")
	guest.Connect(context.Background())
	recv(t, guard.installing, "guard install")

	returned := make(chan struct{})
	go func() {
		host.Disconnect()
		close(returned)
	}()

	time.Sleep(20 * time.Millisecond)
	close(guard.proceed)

	recv(t, returned, "Disconnect return")
	assert.False(t, guard.isArmed())
	assert.Equal(t, StateDisconnected, host.State())
}
