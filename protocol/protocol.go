/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package protocol defines the closed set of messages the two peers exchange
// over their data channel, and the JSON envelope they travel in.
//
// The channel is reliable and ordered, and a message sent while the channel is
// down is simply lost. Receivers must treat stray or repeated messages as
// no-ops rather than errors.
package protocol

import (
	"github.com/Seednode/bellpath/puzzle"
)

// Kind names a message type on the wire.
type Kind string

const (
	KindPlayerMove    Kind = "player_move"
	KindBellStrike    Kind = "bell_strike"
	KindBellPickup    Kind = "bell_pickup"
	KindBellPlace     Kind = "bell_place"
	KindNotePlay      Kind = "note_play"
	KindPuzzleSolved  Kind = "puzzle_solved"
	KindLevelComplete Kind = "level_complete"
)

var kinds = []Kind{
	KindPlayerMove,
	KindBellStrike,
	KindBellPickup,
	KindBellPlace,
	KindNotePlay,
	KindPuzzleSolved,
	KindLevelComplete,
}

// Kinds lists every kind in the protocol.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// Message is implemented by exactly the payload types in this package.
type Message interface {
	Kind() Kind
	validate() error
}

// PlayerMove carries the sender's own body state.
type PlayerMove struct {
	Role      puzzle.Role `json:"role"`
	Position  puzzle.Vec  `json:"position"`
	VelocityX float64     `json:"velocityX"`
	VelocityY float64     `json:"velocityY"`
	Animation string      `json:"animation"`
}

// BellStrike announces a strike. The receiver shows it but never sounds it.
type BellStrike struct {
	BellID string      `json:"bellId"`
	Note   puzzle.Note `json:"note"`
}

type BellPickup struct {
	BellID   string     `json:"bellId"`
	Position puzzle.Vec `json:"position"`
}

type BellPlace struct {
	BellID   string     `json:"bellId"`
	Position puzzle.Vec `json:"position"`
}

// NotePlay announces a note played by the sender. PuzzleGroup is the group
// the sender had armed, or empty.
type NotePlay struct {
	Note        puzzle.Note `json:"note"`
	PuzzleGroup string      `json:"puzzleGroup"`
}

type PuzzleSolved struct {
	PuzzleGroup string `json:"puzzleGroup"`
}

// LevelComplete tells the partner to advance. Level, when present, is the
// index the sender just completed.
type LevelComplete struct {
	Level *int `json:"level,omitempty"`
}

func (PlayerMove) Kind() Kind    { return KindPlayerMove }
func (BellStrike) Kind() Kind    { return KindBellStrike }
func (BellPickup) Kind() Kind    { return KindBellPickup }
func (BellPlace) Kind() Kind     { return KindBellPlace }
func (NotePlay) Kind() Kind      { return KindNotePlay }
func (PuzzleSolved) Kind() Kind  { return KindPuzzleSolved }
func (LevelComplete) Kind() Kind { return KindLevelComplete }

// CompletedLevel builds a LevelComplete naming the finished level.
func CompletedLevel(index int) LevelComplete {
	return LevelComplete{Level: &index}
}
