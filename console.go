/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/Seednode/bellpath/level"
	"github.com/Seednode/bellpath/protocol"
	"github.com/Seednode/bellpath/puzzle"
	"github.com/rs/zerolog"
)

// consoleAudio stands in for a synthesizer on a headless peer.
type consoleAudio struct {
	log zerolog.Logger
}

func (a consoleAudio) PlayNote(n puzzle.Note) {
	a.log.Info().
		Str("note", n.String()).
		Str("label", n.Label()).
		Float64("hz", n.Frequency()).
		Msg("tone")
}

func (a consoleAudio) PlayFlourish() {
	labels := make([]string, 0, len(puzzle.Notes()))
	for _, n := range puzzle.Notes() {
		labels = append(labels, n.Label())
	}

	a.log.Info().Strs("notes", labels).Msg("flourish")
}

type consoleView struct {
	log zerolog.Logger
}

func (v consoleView) LevelLoaded(index int, data *level.Data) {
	v.log.Info().
		Int("level", index+1).
		Str("name", data.Name).
		Int("bells", len(data.Bells)).
		Int("gates", len(data.MoonGates)).
		Msg("entered level")
}

func (v consoleView) BellStruck(bellID string, note puzzle.Note, remote bool) {
	v.log.Info().Str("bell", bellID).Str("note", note.Label()).Bool("partner", remote).Msg("bell struck")
}

func (v consoleView) NotePlayed(note puzzle.Note, remote bool) {
	v.log.Info().Str("note", note.Label()).Bool("partner", remote).Msg("note played")
}

func (v consoleView) Mismatch(groupID string) {
	v.log.Warn().Str("group", groupID).Msg("wrong note, sequence reset")
}

func (v consoleView) GateOpened(gateID string) {
	v.log.Info().Str("gate", gateID).Msg("moon gate opened")
}

func (v consoleView) BellCarried(bellID string, by puzzle.Role) {
	v.log.Info().Str("bell", bellID).Str("by", by.String()).Msg("bell picked up")
}

func (v consoleView) BellPlaced(bellID string, pos puzzle.Vec) {
	v.log.Info().Str("bell", bellID).Float64("x", pos.X).Float64("y", pos.Y).Msg("bell placed")
}

func (v consoleView) RemoteMoved(move protocol.PlayerMove) {
	v.log.Debug().
		Float64("x", move.Position.X).
		Float64("y", move.Position.Y).
		Str("animation", move.Animation).
		Msg("partner moved")
}

func (v consoleView) JourneyComplete() {
	v.log.Info().Msg("the journey is complete")
}
