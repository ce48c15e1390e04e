/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package level holds the read-only level definitions: geometry the external
// physics system consumes, and the bells, gates and sequences the puzzle
// state is built from.
package level

import (
	"github.com/Seednode/bellpath/puzzle"
)

type GateType string

const (
	GatePlayer1 GateType = "player1"
	GatePlayer2 GateType = "player2"
	GatePuzzle  GateType = "puzzle"
)

type Spawns struct {
	Player1 puzzle.Vec `yaml:"player1" json:"player1"`
	Player2 puzzle.Vec `yaml:"player2" json:"player2"`
}

// For returns the spawn point of role.
func (s Spawns) For(role puzzle.Role) puzzle.Vec {
	if role == puzzle.RoleB {
		return s.Player2
	}
	return s.Player1
}

type MoveRange struct {
	StartX float64 `yaml:"startX" json:"startX"`
	EndX   float64 `yaml:"endX" json:"endX"`
	Speed  float64 `yaml:"speed" json:"speed"`
}

type Platform struct {
	X         float64    `yaml:"x" json:"x"`
	Y         float64    `yaml:"y" json:"y"`
	Width     float64    `yaml:"width" json:"width"`
	Height    float64    `yaml:"height" json:"height"`
	Type      string     `yaml:"type,omitempty" json:"type,omitempty"`
	MoveRange *MoveRange `yaml:"moveRange,omitempty" json:"moveRange,omitempty"`
}

type Bell struct {
	ID          string      `yaml:"id" json:"id"`
	Position    puzzle.Vec  `yaml:"position" json:"position"`
	PuzzleGroup string      `yaml:"puzzleGroup" json:"puzzleGroup"`
	DotCount    int         `yaml:"dotCount" json:"dotCount"`
	Note        puzzle.Note `yaml:"note" json:"note"`
}

type MoonGate struct {
	ID          string     `yaml:"id" json:"id"`
	Position    puzzle.Vec `yaml:"position" json:"position"`
	Width       float64    `yaml:"width" json:"width"`
	Height      float64    `yaml:"height" json:"height"`
	Type        GateType   `yaml:"type" json:"type"`
	PuzzleGroup string     `yaml:"puzzleGroup,omitempty" json:"puzzleGroup,omitempty"`
}

// PressurePlate is parsed and exposed, but nothing in the core reacts to it.
type PressurePlate struct {
	ID       string     `yaml:"id" json:"id"`
	Position puzzle.Vec `yaml:"position" json:"position"`
	TargetID string     `yaml:"targetId" json:"targetId"`
}

type Background struct {
	Layers []string `yaml:"layers" json:"layers"`
}

// Data is one level as authored.
type Data struct {
	ID              int                      `yaml:"id" json:"id"`
	Name            string                   `yaml:"name" json:"name"`
	Width           float64                  `yaml:"width" json:"width"`
	Height          float64                  `yaml:"height" json:"height"`
	SpawnPoints     Spawns                   `yaml:"spawnPoints" json:"spawnPoints"`
	Platforms       []Platform               `yaml:"platforms" json:"platforms"`
	Bells           []Bell                   `yaml:"bells" json:"bells"`
	MoonGates       []MoonGate               `yaml:"moonGates" json:"moonGates"`
	PressurePlates  []PressurePlate          `yaml:"pressurePlates" json:"pressurePlates"`
	PuzzleSequences map[string][]puzzle.Note `yaml:"puzzleSequences" json:"puzzleSequences"`
	ExitPosition    puzzle.Vec               `yaml:"exitPosition" json:"exitPosition"`
	Background      Background               `yaml:"background" json:"background"`
}

// Board builds fresh sequence state for the level.
func (d *Data) Board() *puzzle.Board {
	return puzzle.NewBoard(d.PuzzleSequences)
}

// BuildBells returns fresh carry tokens keyed by bell id.
func (d *Data) BuildBells() map[string]*puzzle.Bell {
	out := make(map[string]*puzzle.Bell, len(d.Bells))
	for _, b := range d.Bells {
		out[b.ID] = puzzle.NewBell(b.ID, b.PuzzleGroup, b.DotCount, b.Note, b.Position)
	}
	return out
}

// BuildGates returns fresh moon gates keyed by gate id. Gates with an unknown
// type are skipped; Validate reports them.
func (d *Data) BuildGates() map[string]*puzzle.Gate {
	out := make(map[string]*puzzle.Gate, len(d.MoonGates))
	for _, g := range d.MoonGates {
		switch g.Type {
		case GatePlayer1:
			out[g.ID] = puzzle.NewRoleGate(g.ID, puzzle.RoleA, g.Position, g.Width, g.Height)
		case GatePlayer2:
			out[g.ID] = puzzle.NewRoleGate(g.ID, puzzle.RoleB, g.Position, g.Width, g.Height)
		case GatePuzzle:
			out[g.ID] = puzzle.NewPuzzleGate(g.ID, g.PuzzleGroup, g.Position, g.Width, g.Height)
		}
	}
	return out
}
