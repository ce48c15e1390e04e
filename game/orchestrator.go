/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package game composes the puzzle state for one peer: it applies local
// actions, mirrors them to the partner, and applies the partner's messages to
// this peer's replica.
package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Seednode/bellpath/level"
	"github.com/Seednode/bellpath/protocol"
	"github.com/Seednode/bellpath/puzzle"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrNoLevels        = errors.New("game: no levels")
	ErrNoSuchLevel     = errors.New("game: no such level")
	ErrWrongRole       = errors.New("game: action not available to this role")
	ErrUnknownBell     = errors.New("game: unknown bell")
	ErrAlreadyCarrying = errors.New("game: already carrying a bell")
	ErrJourneyOver     = errors.New("game: journey complete")
)

type Config struct {
	Role   puzzle.Role
	Levels []level.Data

	Sender Sender
	Audio  Audio
	View   View
	Logger zerolog.Logger

	SyncInterval  time.Duration
	ExitRadius    float64
	InteractRange float64
	CarryOffset   puzzle.Vec
}

func DefaultConfig() Config {
	return Config{
		Sender:        nopSender{},
		Audio:         NopAudio{},
		View:          NopView{},
		Logger:        zerolog.Nop(),
		SyncInterval:  50 * time.Millisecond,
		ExitRadius:    40,
		InteractRange: 40,
		CarryOffset:   puzzle.Vec{X: 0, Y: 20},
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Sender == nil {
		cfg.Sender = def.Sender
	}
	if cfg.Audio == nil {
		cfg.Audio = def.Audio
	}
	if cfg.View == nil {
		cfg.View = def.View
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.ExitRadius <= 0 {
		cfg.ExitRadius = def.ExitRadius
	}
	if cfg.InteractRange <= 0 {
		cfg.InteractRange = def.InteractRange
	}
	if cfg.CarryOffset == (puzzle.Vec{}) {
		cfg.CarryOffset = def.CarryOffset
	}
	return cfg
}

// BellState is a read-only view of one bell.
type BellState struct {
	ID       string
	Group    string
	Note     puzzle.Note
	Position puzzle.Vec
	Carrier  puzzle.Role
	Visible  bool
}

// Orchestrator owns one peer's replica of the level. Local actions come from
// the input driver and remote messages from the session; a mutex serializes
// the two.
type Orchestrator struct {
	cfg     Config
	log     zerolog.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	index    int
	data     *level.Data
	board    *puzzle.Board
	bells    map[string]*puzzle.Bell
	gates    map[string]*puzzle.Gate
	local    puzzle.Vec
	remote   puzzle.Vec
	carrying map[puzzle.Role]string
	finished bool

	// latest gated position update, sent when the limiter next allows
	pending    *protocol.PlayerMove
	flushTimer *time.Timer
}

// New builds an orchestrator with the first level loaded.
func New(cfg Config) (*Orchestrator, error) {
	cfg = normalizeConfig(cfg)

	if !cfg.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", puzzle.ErrInvalidRole, cfg.Role)
	}
	if len(cfg.Levels) == 0 {
		return nil, ErrNoLevels
	}

	o := &Orchestrator{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("role", cfg.Role.String()).Logger(),
		limiter: rate.NewLimiter(rate.Every(cfg.SyncInterval), 1),
	}

	if err := o.LoadLevel(0); err != nil {
		return nil, err
	}

	return o, nil
}

func (o *Orchestrator) Role() puzzle.Role { return o.cfg.Role }

// LoadLevel replaces all per-level state with a fresh copy of level index.
func (o *Orchestrator) LoadLevel(index int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.loadLocked(index)
}

func (o *Orchestrator) loadLocked(index int) error {
	if index < 0 || index >= len(o.cfg.Levels) {
		return fmt.Errorf("%w: %d", ErrNoSuchLevel, index)
	}

	d := &o.cfg.Levels[index]

	o.index = index
	o.data = d
	o.board = d.Board()
	o.bells = d.BuildBells()
	o.gates = d.BuildGates()
	o.local = d.SpawnPoints.For(o.cfg.Role)
	o.remote = d.SpawnPoints.For(o.cfg.Role.Other())
	o.carrying = make(map[puzzle.Role]string, 2)
	o.finished = false
	o.pending = nil

	o.log.Info().Int("level", index).Str("name", d.Name).Msg("level loaded")
	o.cfg.View.LevelLoaded(index, d)

	return nil
}

func (o *Orchestrator) Level() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.index
}

func (o *Orchestrator) LevelData() *level.Data {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.data
}

func (o *Orchestrator) Finished() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.finished
}

func (o *Orchestrator) IsSolved(groupID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.board.IsSolved(groupID)
}

// Armed returns the id of the armed group, if any.
func (o *Orchestrator) Armed() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	g, ok := o.board.Armed()
	if !ok {
		return "", false
	}
	return g.ID(), true
}

// Played returns the matched prefix of a group.
func (o *Orchestrator) Played(groupID string) []puzzle.Note {
	o.mu.Lock()
	defer o.mu.Unlock()

	g, ok := o.board.Group(groupID)
	if !ok {
		return nil
	}
	return g.Played()
}

func (o *Orchestrator) LocalPosition() puzzle.Vec {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.local
}

func (o *Orchestrator) RemotePosition() puzzle.Vec {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.remote
}

// Carrying returns the bell the local role holds.
func (o *Orchestrator) Carrying() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id, ok := o.carrying[o.cfg.Role]
	return id, ok
}

func (o *Orchestrator) Bell(id string) (BellState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.bells[id]
	if !ok {
		return BellState{}, false
	}

	return BellState{
		ID:       b.ID,
		Group:    b.Group,
		Note:     b.Note,
		Position: b.Position(),
		Carrier:  b.Carrier(),
		Visible:  b.Visible(),
	}, true
}

// Blocks reports whether gateID stops the local role. Unknown gates never
// block.
func (o *Orchestrator) Blocks(gateID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	g, ok := o.gates[gateID]
	if !ok {
		return false
	}

	return puzzle.Blocks(g, o.cfg.Role, o.board.IsSolved)
}

// NearestBell returns the closest visible bell strictly within interaction
// range of pos.
func (o *Orchestrator) NearestBell(pos puzzle.Vec) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	best, bestDist := "", o.cfg.InteractRange
	for id, b := range o.bells {
		if !b.Visible() {
			continue
		}

		d := pos.Dist(b.Position())
		if d < bestDist || (d == bestDist && best != "" && id < best) {
			best, bestDist = id, d
		}
	}

	return best, best != ""
}

// CheckLevelComplete holds when every group is solved and both players, as
// last known here, stand within the exit radius.
func (o *Orchestrator) CheckLevelComplete() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.completeLocked()
}

func (o *Orchestrator) completeLocked() bool {
	if o.finished || !o.board.AllSolved() {
		return false
	}

	exit := o.data.ExitPosition
	return o.local.Dist(exit) <= o.cfg.ExitRadius && o.remote.Dist(exit) <= o.cfg.ExitRadius
}

// TryAdvance tells the partner and moves on when the level is complete.
func (o *Orchestrator) TryAdvance() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.completeLocked() {
		return false
	}

	o.cfg.Sender.Send(protocol.CompletedLevel(o.index))
	o.advanceLocked()

	return true
}

func (o *Orchestrator) advanceLocked() {
	next := o.index + 1
	if next >= len(o.cfg.Levels) {
		o.finished = true
		o.log.Info().Msg("journey complete")
		o.cfg.View.JourneyComplete()
		return
	}

	_ = o.loadLocked(next)
}

// Move records the local position and mirrors it at most once per sync
// interval. An update that arrives too early replaces any waiting one and
// goes out at the next free slot. It reports whether an update went out now.
func (o *Orchestrator) Move(pos, vel puzzle.Vec, animation string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.local = pos

	move := protocol.PlayerMove{
		Role:      o.cfg.Role,
		Position:  pos,
		VelocityX: vel.X,
		VelocityY: vel.Y,
		Animation: animation,
	}

	if o.flushTimer != nil {
		o.pending = &move
		return false
	}

	r := o.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		o.cfg.Sender.Send(move)
		return true
	}

	o.pending = &move
	o.flushTimer = time.AfterFunc(delay, o.flushMove)

	return false
}

func (o *Orchestrator) flushMove() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushTimer = nil
	if o.pending == nil {
		return
	}

	o.cfg.Sender.Send(*o.pending)
	o.pending = nil
}

// Strike sounds a bell locally, arms its group, and shows the strike to the
// partner without sound.
func (o *Orchestrator) Strike(bellID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cfg.Role != puzzle.RoleA {
		return ErrWrongRole
	}
	if o.finished {
		return ErrJourneyOver
	}

	b, ok := o.bells[bellID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBell, bellID)
	}
	if !b.Visible() {
		return fmt.Errorf("%w: %s", puzzle.ErrBellCarried, bellID)
	}

	o.board.Arm(b.Group)
	o.cfg.Audio.PlayNote(b.Note)
	o.cfg.View.BellStruck(b.ID, b.Note, false)
	o.cfg.Sender.Send(protocol.BellStrike{BellID: b.ID, Note: b.Note})

	return nil
}

// PlayNote sounds a note locally and feeds it to the armed group on both
// peers.
func (o *Orchestrator) PlayNote(n puzzle.Note) error {
	if !n.Valid() {
		return fmt.Errorf("game: unknown note %q", n)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cfg.Role != puzzle.RoleB {
		return ErrWrongRole
	}
	if o.finished {
		return ErrJourneyOver
	}

	armed := ""
	if g, ok := o.board.Armed(); ok {
		armed = g.ID()
	}

	o.cfg.Audio.PlayNote(n)
	o.cfg.View.NotePlayed(n, false)
	o.cfg.Sender.Send(protocol.NotePlay{Note: n, PuzzleGroup: armed})

	o.observeLocked(n, false)

	return nil
}

func (o *Orchestrator) observeLocked(n puzzle.Note, remote bool) {
	groupID, outcome := o.board.ObserveNote(n)

	switch outcome {
	case puzzle.Mismatch:
		o.log.Debug().Str("group", groupID).Str("note", n.String()).Msg("sequence mismatch")
		o.cfg.View.Mismatch(groupID)
	case puzzle.Solved:
		o.solvedLocked(groupID, remote)
	}
}

// solvedLocked opens the group's gates. A solve caused here also plays the
// flourish and tells the partner.
func (o *Orchestrator) solvedLocked(groupID string, remote bool) {
	o.log.Info().Str("group", groupID).Bool("remote", remote).Msg("puzzle solved")

	for _, g := range o.gates {
		if g.Kind == puzzle.PuzzleLocked && g.Group == groupID && g.Open() {
			o.cfg.View.GateOpened(g.ID)
		}
	}

	if remote {
		return
	}

	o.cfg.Audio.PlayFlourish()
	o.cfg.Sender.Send(protocol.PuzzleSolved{PuzzleGroup: groupID})
}

// Pickup takes a bell onto the local player's back.
func (o *Orchestrator) Pickup(bellID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.finished {
		return ErrJourneyOver
	}
	if held, ok := o.carrying[o.cfg.Role]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyCarrying, held)
	}

	b, ok := o.bells[bellID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBell, bellID)
	}

	pos := b.Position()
	if err := b.Pickup(o.cfg.Role); err != nil {
		return err
	}
	o.carrying[o.cfg.Role] = b.ID

	o.cfg.View.BellCarried(b.ID, o.cfg.Role)
	o.cfg.Sender.Send(protocol.BellPickup{BellID: b.ID, Position: pos})

	return nil
}

// Place sets the carried bell down just below carrierPos.
func (o *Orchestrator) Place(bellID string, carrierPos puzzle.Vec) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.finished {
		return ErrJourneyOver
	}

	b, ok := o.bells[bellID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBell, bellID)
	}

	at := carrierPos.Add(o.cfg.CarryOffset)
	if err := b.Place(o.cfg.Role, at); err != nil {
		return err
	}
	delete(o.carrying, o.cfg.Role)

	o.cfg.View.BellPlaced(b.ID, at)
	o.cfg.Sender.Send(protocol.BellPlace{BellID: b.ID, Position: at})

	return nil
}

// HandlePacket applies one inbound message. It is shaped to be passed
// straight to a session's OnMessage.
func (o *Orchestrator) HandlePacket(p protocol.Packet) {
	if err := protocol.Dispatch(o, p.Message); err != nil {
		o.log.Debug().Err(err).Msg("ignoring message")
	}
}

func (o *Orchestrator) HandlePlayerMove(m protocol.PlayerMove) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if m.Role == o.cfg.Role {
		o.log.Debug().Msg("ignoring move for own role")
		return
	}

	o.remote = m.Position
	o.cfg.View.RemoteMoved(m)
}

func (o *Orchestrator) HandleBellStrike(m protocol.BellStrike) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.bells[m.BellID]
	if !ok {
		o.log.Debug().Str("bell", m.BellID).Msg("strike for unknown bell")
		return
	}

	o.board.Arm(b.Group)
	o.cfg.View.BellStruck(b.ID, b.Note, true)
}

func (o *Orchestrator) HandleNotePlay(m protocol.NotePlay) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cfg.View.NotePlayed(m.Note, true)
	o.observeLocked(m.Note, true)
}

func (o *Orchestrator) HandlePuzzleSolved(m protocol.PuzzleSolved) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.board.Group(m.PuzzleGroup); !ok {
		o.log.Debug().Str("group", m.PuzzleGroup).Msg("solve for unknown group")
		return
	}

	if o.board.MarkSolved(m.PuzzleGroup) {
		o.solvedLocked(m.PuzzleGroup, true)
	}
}

func (o *Orchestrator) HandleBellPickup(m protocol.BellPickup) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.bells[m.BellID]
	if !ok {
		o.log.Debug().Str("bell", m.BellID).Msg("pickup of unknown bell")
		return
	}

	by := o.cfg.Role.Other()
	if held := o.carrying[o.cfg.Role]; held == b.ID {
		o.log.Warn().Str("bell", b.ID).Msg("partner took the bell this player was carrying")
		delete(o.carrying, o.cfg.Role)
	}

	b.ApplyRemotePickup(by, m.Position)
	o.carrying[by] = b.ID
	o.cfg.View.BellCarried(b.ID, by)
}

func (o *Orchestrator) HandleBellPlace(m protocol.BellPlace) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.bells[m.BellID]
	if !ok {
		o.log.Debug().Str("bell", m.BellID).Msg("place of unknown bell")
		return
	}

	for role, id := range o.carrying {
		if id == b.ID {
			delete(o.carrying, role)
		}
	}

	b.ApplyRemotePlace(m.Position)
	o.cfg.View.BellPlaced(b.ID, m.Position)
}

// HandleLevelComplete advances without re-checking. A completion naming a
// level other than the current one is a duplicate and is dropped.
func (o *Orchestrator) HandleLevelComplete(m protocol.LevelComplete) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.finished {
		return
	}
	if m.Level != nil && *m.Level != o.index {
		o.log.Debug().Int("level", *m.Level).Int("current", o.index).Msg("stale level_complete")
		return
	}

	o.advanceLocked()
}
