/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package puzzle

// GateKind decides what a moon gate's passability depends on.
type GateKind int

const (
	// RoleExclusive gates only let their own role through.
	RoleExclusive GateKind = iota
	// PuzzleLocked gates block everyone until their group is solved.
	PuzzleLocked
)

func (k GateKind) String() string {
	if k == PuzzleLocked {
		return "puzzle"
	}
	return "role"
}

// Gate is a moon gate barrier.
type Gate struct {
	ID     string
	Kind   GateKind
	Role   Role
	Group  string
	Pos    Vec
	Width  float64
	Height float64

	opened bool
}

func NewRoleGate(id string, role Role, pos Vec, w, h float64) *Gate {
	return &Gate{ID: id, Kind: RoleExclusive, Role: role, Pos: pos, Width: w, Height: h}
}

func NewPuzzleGate(id, group string, pos Vec, w, h float64) *Gate {
	return &Gate{ID: id, Kind: PuzzleLocked, Group: group, Pos: pos, Width: w, Height: h}
}

// Open latches a puzzle gate open for the rest of the level. It reports
// whether this call changed anything; role gates never open.
func (g *Gate) Open() bool {
	if g.Kind != PuzzleLocked || g.opened {
		return false
	}
	g.opened = true
	return true
}

func (g *Gate) Opened() bool { return g.opened }

// SolvedFunc reports whether a puzzle group is solved.
type SolvedFunc func(group string) bool

// Blocks decides whether g stops a body belonging to observer. The external
// collision system treats the result as the authority for resolving a
// body-vs-gate contact as a block or letting it pass.
func Blocks(g *Gate, observer Role, solved SolvedFunc) bool {
	switch g.Kind {
	case RoleExclusive:
		return observer != g.Role
	case PuzzleLocked:
		if g.opened {
			return false
		}
		return solved == nil || !solved(g.Group)
	default:
		return true
	}
}
