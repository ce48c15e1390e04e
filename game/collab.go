/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"github.com/Seednode/bellpath/level"
	"github.com/Seednode/bellpath/protocol"
	"github.com/Seednode/bellpath/puzzle"
)

// Audio synthesizes tones. It is only ever asked to sound events caused on
// this peer.
type Audio interface {
	PlayNote(puzzle.Note)
	PlayFlourish()
}

// View renders visual feedback. Calls arrive with the orchestrator locked, so
// implementations must not call back into it.
type View interface {
	LevelLoaded(index int, data *level.Data)
	BellStruck(bellID string, note puzzle.Note, remote bool)
	NotePlayed(note puzzle.Note, remote bool)
	Mismatch(groupID string)
	GateOpened(gateID string)
	BellCarried(bellID string, by puzzle.Role)
	BellPlaced(bellID string, pos puzzle.Vec)
	RemoteMoved(move protocol.PlayerMove)
	JourneyComplete()
}

// Sender is the outbound half of a session.
type Sender interface {
	Send(protocol.Message)
}

type NopAudio struct{}

func (NopAudio) PlayNote(puzzle.Note) {}
func (NopAudio) PlayFlourish()        {}

type NopView struct{}

func (NopView) LevelLoaded(int, *level.Data)           {}
func (NopView) BellStruck(string, puzzle.Note, bool)   {}
func (NopView) NotePlayed(puzzle.Note, bool)           {}
func (NopView) Mismatch(string)                        {}
func (NopView) GateOpened(string)                      {}
func (NopView) BellCarried(string, puzzle.Role)        {}
func (NopView) BellPlaced(string, puzzle.Vec)          {}
func (NopView) RemoteMoved(protocol.PlayerMove)        {}
func (NopView) JourneyComplete()                       {}

type nopSender struct{}

func (nopSender) Send(protocol.Message) {}
