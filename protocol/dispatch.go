/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package protocol

import "fmt"

// Handler has one method per message kind, so adding a kind breaks every
// receiver until it handles it.
type Handler interface {
	HandlePlayerMove(PlayerMove)
	HandleBellStrike(BellStrike)
	HandleBellPickup(BellPickup)
	HandleBellPlace(BellPlace)
	HandleNotePlay(NotePlay)
	HandlePuzzleSolved(PuzzleSolved)
	HandleLevelComplete(LevelComplete)
}

// Dispatch routes msg to the matching Handler method.
func Dispatch(h Handler, msg Message) error {
	switch m := msg.(type) {
	case PlayerMove:
		h.HandlePlayerMove(m)
	case BellStrike:
		h.HandleBellStrike(m)
	case BellPickup:
		h.HandleBellPickup(m)
	case BellPlace:
		h.HandleBellPlace(m)
	case NotePlay:
		h.HandleNotePlay(m)
	case PuzzleSolved:
		h.HandlePuzzleSolved(m)
	case LevelComplete:
		h.HandleLevelComplete(m)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, msg)
	}
	return nil
}
