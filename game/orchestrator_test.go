/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"sync"
	"testing"
	"time"

	"github.com/Seednode/bellpath/level"
	"github.com/Seednode/bellpath/protocol"
	"github.com/Seednode/bellpath/puzzle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAudio struct {
	notes      []puzzle.Note
	flourishes int
}

func (a *recordingAudio) PlayNote(n puzzle.Note) { a.notes = append(a.notes, n) }
func (a *recordingAudio) PlayFlourish()          { a.flourishes++ }

type recordingView struct {
	NopView
	struck     []bool
	mismatches []string
	opened     []string
	loaded     []int
	journeyEnd int
}

func (v *recordingView) BellStruck(_ string, _ puzzle.Note, remote bool) {
	v.struck = append(v.struck, remote)
}
func (v *recordingView) Mismatch(g string)                 { v.mismatches = append(v.mismatches, g) }
func (v *recordingView) GateOpened(id string)              { v.opened = append(v.opened, id) }
func (v *recordingView) LevelLoaded(i int, _ *level.Data) { v.loaded = append(v.loaded, i) }
func (v *recordingView) JourneyComplete()                  { v.journeyEnd++ }

// link queues outbound messages until flushed into the partner.
type link struct {
	mu    sync.Mutex
	queue []protocol.Message
	to    *Orchestrator
}

func (l *link) Send(m protocol.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.queue = append(l.queue, m)
}

func (l *link) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.queue)
}

func (l *link) flush() {
	l.mu.Lock()
	q := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, m := range q {
		l.to.HandlePacket(protocol.Packet{Message: m, Timestamp: time.Now()})
	}
}

type peer struct {
	o     *Orchestrator
	audio *recordingAudio
	view  *recordingView
	out   *link
}

func newPeer(t *testing.T, role puzzle.Role, levels []level.Data) *peer {
	t.Helper()

	p := &peer{audio: &recordingAudio{}, view: &recordingView{}, out: &link{}}

	cfg := DefaultConfig()
	cfg.Role = role
	cfg.Levels = levels
	cfg.Sender = p.out
	cfg.Audio = p.audio
	cfg.View = p.view
	cfg.SyncInterval = time.Hour

	o, err := New(cfg)
	require.NoError(t, err)
	p.o = o

	return p
}

func newPair(t *testing.T) (*peer, *peer) {
	t.Helper()

	levels, err := level.Default()
	require.NoError(t, err)

	a := newPeer(t, puzzle.RoleA, levels)
	b := newPeer(t, puzzle.RoleB, levels)
	a.out.to, b.out.to = b.o, a.o

	return a, b
}

func bothAt(t *testing.T, a, b *peer, index int) {
	t.Helper()

	require.NoError(t, a.o.LoadLevel(index))
	require.NoError(t, b.o.LoadLevel(index))
}

func TestRemoteStrikeIsVisualOnly(t *testing.T) {
	a, b := newPair(t)

	require.NoError(t, a.o.Strike("l1-bell-1"))
	assert.Equal(t, []puzzle.Note{puzzle.Gong}, a.audio.notes)
	assert.Equal(t, []bool{false}, a.view.struck)

	a.out.flush()

	assert.Empty(t, b.audio.notes)
	assert.Zero(t, b.audio.flourishes)
	assert.Equal(t, []bool{true}, b.view.struck)

	armed, ok := b.o.Armed()
	require.True(t, ok)
	assert.Equal(t, "red", armed)
}

func TestBlueSequenceAcrossPeers(t *testing.T) {
	a, b := newPair(t)
	bothAt(t, a, b, 1)

	assert.True(t, a.o.Blocks("l2-gate-puzzle"))
	assert.True(t, b.o.Blocks("l2-gate-puzzle"))
	assert.False(t, a.o.Blocks("l2-gate-blue"))
	assert.True(t, a.o.Blocks("l2-gate-red"))
	assert.True(t, b.o.Blocks("l2-gate-blue"))
	assert.False(t, b.o.Blocks("l2-gate-red"))

	require.NoError(t, a.o.Strike("l2-bell-1"))
	a.out.flush()

	require.NoError(t, b.o.PlayNote(puzzle.Zhi))
	b.out.flush()
	assert.Equal(t, []puzzle.Note{puzzle.Zhi}, a.o.Played("blue"))
	assert.Equal(t, []puzzle.Note{puzzle.Zhi}, b.o.Played("blue"))

	require.NoError(t, b.o.PlayNote(puzzle.Shang))
	b.out.flush()

	for _, p := range []*peer{a, b} {
		assert.True(t, p.o.IsSolved("blue"))
		assert.False(t, p.o.Blocks("l2-gate-puzzle"))
		assert.Equal(t, []string{"l2-gate-puzzle"}, p.view.opened)
		_, armed := p.o.Armed()
		assert.False(t, armed)
	}

	assert.Equal(t, []puzzle.Note{puzzle.Zhi}, a.audio.notes)
	assert.Zero(t, a.audio.flourishes)
	assert.Equal(t, []puzzle.Note{puzzle.Zhi, puzzle.Shang}, b.audio.notes)
	assert.Equal(t, 1, b.audio.flourishes)

	// Role gates never change.
	assert.True(t, a.o.Blocks("l2-gate-red"))
	assert.True(t, b.o.Blocks("l2-gate-blue"))
	assert.False(t, a.o.Blocks("missing"))
}

func TestMismatchResetsPrefix(t *testing.T) {
	a, b := newPair(t)
	bothAt(t, a, b, 1)

	require.NoError(t, a.o.Strike("l2-bell-2"))
	a.out.flush()

	require.NoError(t, b.o.PlayNote(puzzle.Zhi))
	require.NoError(t, b.o.PlayNote(puzzle.Yu))
	b.out.flush()

	for _, p := range []*peer{a, b} {
		assert.Empty(t, p.o.Played("blue"))
		assert.Equal(t, []string{"blue"}, p.view.mismatches)
		assert.False(t, p.o.IsSolved("blue"))
	}
}

func TestNotesWithoutStrikeAreIgnored(t *testing.T) {
	a, b := newPair(t)

	require.NoError(t, b.o.PlayNote(puzzle.Gong))
	b.out.flush()

	assert.False(t, a.o.IsSolved("red"))
	assert.False(t, b.o.IsSolved("red"))
	assert.Equal(t, []puzzle.Note{puzzle.Gong}, b.audio.notes)
}

func TestRolesAreEnforced(t *testing.T) {
	a, b := newPair(t)

	assert.ErrorIs(t, b.o.Strike("l1-bell-1"), ErrWrongRole)
	assert.ErrorIs(t, a.o.PlayNote(puzzle.Gong), ErrWrongRole)
	assert.ErrorIs(t, a.o.Strike("nope"), ErrUnknownBell)
	assert.Error(t, b.o.PlayNote("do"))
	assert.Empty(t, a.out.queue)
	assert.Empty(t, b.out.queue)
}

func TestLevelIncompleteUntilSolvedEvenAtExit(t *testing.T) {
	a, b := newPair(t)
	exit := a.o.LevelData().ExitPosition

	a.o.Move(exit, puzzle.Vec{}, "idle")
	b.o.Move(exit, puzzle.Vec{}, "idle")
	a.out.flush()
	b.out.flush()

	assert.False(t, a.o.CheckLevelComplete())
	assert.False(t, a.o.TryAdvance())
	assert.Equal(t, 0, a.o.Level())

	require.NoError(t, a.o.Strike("l1-bell-1"))
	a.out.flush()
	require.NoError(t, b.o.PlayNote(puzzle.Gong))
	b.out.flush()

	assert.True(t, a.o.CheckLevelComplete())
	assert.True(t, b.o.CheckLevelComplete())

	require.True(t, a.o.TryAdvance())
	assert.Equal(t, 1, a.o.Level())
	require.Len(t, a.out.queue, 1)
	assert.Equal(t, protocol.CompletedLevel(0), a.out.queue[0])

	a.out.flush()
	assert.Equal(t, 1, b.o.Level())
	assert.Equal(t, []int{0, 1}, b.view.loaded)

	assert.False(t, b.o.IsSolved("blue"))
	assert.Equal(t, b.o.LevelData().SpawnPoints.Player1, b.o.RemotePosition())
}

func TestRemotePartnerFarFromExit(t *testing.T) {
	a, b := newPair(t)

	require.NoError(t, a.o.Strike("l1-bell-1"))
	a.out.flush()
	require.NoError(t, b.o.PlayNote(puzzle.Gong))
	b.out.flush()

	a.o.Move(a.o.LevelData().ExitPosition, puzzle.Vec{}, "idle")
	assert.False(t, a.o.CheckLevelComplete())
}

func TestSimultaneousCompletionAdvancesOnce(t *testing.T) {
	a, b := newPair(t)

	require.NoError(t, a.o.Strike("l1-bell-1"))
	a.out.flush()
	require.NoError(t, b.o.PlayNote(puzzle.Gong))
	b.out.flush()

	exit := a.o.LevelData().ExitPosition
	a.o.Move(exit, puzzle.Vec{}, "idle")
	b.o.Move(exit, puzzle.Vec{}, "idle")
	a.out.flush()
	b.out.flush()

	require.True(t, a.o.TryAdvance())
	require.True(t, b.o.TryAdvance())
	a.out.flush()
	b.out.flush()

	assert.Equal(t, 1, a.o.Level())
	assert.Equal(t, 1, b.o.Level())

	// A bare completion still advances.
	b.o.HandleLevelComplete(protocol.LevelComplete{})
	assert.True(t, b.o.Finished())
	assert.Equal(t, 1, b.view.journeyEnd)

	assert.ErrorIs(t, b.o.PlayNote(puzzle.Gong), ErrJourneyOver)
	b.o.HandleLevelComplete(protocol.LevelComplete{})
	assert.Equal(t, 1, b.view.journeyEnd)
}

func TestCarryRoundTrip(t *testing.T) {
	a, b := newPair(t)
	bothAt(t, a, b, 1)

	bell, ok := b.o.Bell("l2-bell-1")
	require.True(t, ok)

	id, ok := b.o.NearestBell(bell.Position.Add(puzzle.Vec{X: 10}))
	require.True(t, ok)
	assert.Equal(t, "l2-bell-1", id)

	_, ok = b.o.NearestBell(bell.Position.Add(puzzle.Vec{X: 40}))
	assert.False(t, ok, "range is exclusive")

	require.NoError(t, b.o.Pickup("l2-bell-1"))
	assert.ErrorIs(t, b.o.Pickup("l2-bell-2"), ErrAlreadyCarrying)
	_, ok = b.o.NearestBell(bell.Position)
	assert.False(t, ok)

	b.out.flush()
	remote, _ := a.o.Bell("l2-bell-1")
	assert.Equal(t, puzzle.RoleB, remote.Carrier)
	assert.False(t, remote.Visible)
	assert.ErrorIs(t, a.o.Strike("l2-bell-1"), puzzle.ErrBellCarried)
	assert.ErrorIs(t, a.o.Pickup("l2-bell-1"), puzzle.ErrBellCarried)

	assert.ErrorIs(t, a.o.Place("l2-bell-1", puzzle.Vec{}), puzzle.ErrNotCarrier)

	carrier := puzzle.Vec{X: 300, Y: 400}
	require.NoError(t, b.o.Place("l2-bell-1", carrier))
	_, carrying := b.o.Carrying()
	assert.False(t, carrying)

	b.out.flush()
	for _, p := range []*peer{a, b} {
		s, _ := p.o.Bell("l2-bell-1")
		assert.Equal(t, puzzle.Vec{X: 300, Y: 420}, s.Position)
		assert.True(t, s.Visible)
	}
}

func TestPlaceOffsetDefaultsBelowCarrier(t *testing.T) {
	levels, err := level.Default()
	require.NoError(t, err)

	o, err := New(Config{Role: puzzle.RoleB, Levels: levels})
	require.NoError(t, err)

	require.NoError(t, o.Pickup("l1-bell-1"))
	require.NoError(t, o.Place("l1-bell-1", puzzle.Vec{X: 470, Y: 400}))

	s, ok := o.Bell("l1-bell-1")
	require.True(t, ok)
	assert.Equal(t, puzzle.Vec{X: 470, Y: 420}, s.Position)
}

func TestRemotePickupWinsRace(t *testing.T) {
	a, b := newPair(t)
	bothAt(t, a, b, 1)

	require.NoError(t, a.o.Pickup("l2-bell-2"))
	require.NoError(t, b.o.Pickup("l2-bell-2"))

	a.out.flush()
	b.out.flush()

	sa, _ := a.o.Bell("l2-bell-2")
	sb, _ := b.o.Bell("l2-bell-2")
	assert.Equal(t, puzzle.RoleB, sa.Carrier)
	assert.Equal(t, puzzle.RoleA, sb.Carrier)

	_, carrying := a.o.Carrying()
	assert.False(t, carrying)
}

func TestMoveIsRateLimited(t *testing.T) {
	a, b := newPair(t)

	assert.True(t, a.o.Move(puzzle.Vec{X: 1}, puzzle.Vec{X: 160}, "walk"))
	assert.False(t, a.o.Move(puzzle.Vec{X: 2}, puzzle.Vec{X: 160}, "walk"))
	assert.Equal(t, puzzle.Vec{X: 2}, a.o.LocalPosition())

	a.out.flush()
	assert.Equal(t, puzzle.Vec{X: 1}, b.o.RemotePosition())

	b.o.HandlePlayerMove(protocol.PlayerMove{Role: puzzle.RoleB, Position: puzzle.Vec{X: 99}})
	assert.Equal(t, puzzle.Vec{X: 1}, b.o.RemotePosition())
}

func TestGatedMoveIsSentAtNextSlot(t *testing.T) {
	levels, err := level.Default()
	require.NoError(t, err)

	out := &link{}
	cfg := DefaultConfig()
	cfg.Role = puzzle.RoleA
	cfg.Levels = levels
	cfg.Sender = out
	cfg.SyncInterval = 30 * time.Millisecond
	a, err := New(cfg)
	require.NoError(t, err)

	b := newPeer(t, puzzle.RoleB, levels)
	out.to = b.o

	exit := levels[0].ExitPosition
	assert.True(t, a.Move(puzzle.Vec{X: 100, Y: 100}, puzzle.Vec{}, "walk"))
	assert.False(t, a.Move(puzzle.Vec{X: 500, Y: 400}, puzzle.Vec{}, "walk"))
	assert.False(t, a.Move(exit, puzzle.Vec{}, "idle"))

	require.Eventually(t, func() bool { return out.pending() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, out.pending(), "only the latest gated position is sent")

	out.flush()
	assert.Equal(t, exit, b.o.RemotePosition())
}

func TestLoadLevelResetsReplica(t *testing.T) {
	a, b := newPair(t)
	bothAt(t, a, b, 1)

	require.NoError(t, a.o.Strike("l2-bell-1"))
	require.NoError(t, a.o.Pickup("l2-bell-2"))

	require.NoError(t, a.o.LoadLevel(1))
	_, armed := a.o.Armed()
	assert.False(t, armed)
	_, carrying := a.o.Carrying()
	assert.False(t, carrying)

	assert.ErrorIs(t, a.o.LoadLevel(5), ErrNoSuchLevel)
	assert.Equal(t, 1, a.o.Level())
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Role: puzzle.RoleA})
	assert.ErrorIs(t, err, ErrNoLevels)

	_, err = New(Config{Role: "nobody", Levels: []level.Data{{}}})
	assert.ErrorIs(t, err, puzzle.ErrInvalidRole)
}
