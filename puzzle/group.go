/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package puzzle

import (
	"slices"
	"sort"
)

// Outcome reports what a single observed note did to a group.
type Outcome int

const (
	// Ignored means no group was listening, or it was already solved.
	Ignored Outcome = iota
	// Progress means the note extended the matching prefix.
	Progress
	// Mismatch means the note did not match and the prefix was reset.
	Mismatch
	// Solved means the note completed the expected sequence.
	Solved
)

func (o Outcome) String() string {
	switch o {
	case Progress:
		return "progress"
	case Mismatch:
		return "mismatch"
	case Solved:
		return "solved"
	default:
		return "ignored"
	}
}

// Group tracks the notes played so far against one expected sequence.
//
// played is always empty or a prefix of expected. solved never reverts.
type Group struct {
	id       string
	expected []Note
	played   []Note
	solved   bool
	armed    bool
}

func NewGroup(id string, expected []Note) *Group {
	return &Group{
		id:       id,
		expected: slices.Clone(expected),
	}
}

func (g *Group) ID() string { return g.id }

func (g *Group) Expected() []Note { return slices.Clone(g.expected) }

func (g *Group) Played() []Note { return slices.Clone(g.played) }

func (g *Group) Solved() bool { return g.solved }

func (g *Group) Armed() bool { return g.armed }

// ObserveNote feeds one note to the group. It is a no-op unless the group is
// armed and unsolved.
func (g *Group) ObserveNote(n Note) Outcome {
	if !g.armed || g.solved {
		return Ignored
	}

	g.played = append(g.played, n)
	if n != g.expected[len(g.played)-1] {
		g.played = g.played[:0]
		return Mismatch
	}

	if len(g.played) == len(g.expected) {
		g.solved = true
		g.armed = false
		return Solved
	}

	return Progress
}

func (g *Group) markSolved() bool {
	if g.solved {
		return false
	}
	g.solved = true
	g.armed = false
	g.played = slices.Clone(g.expected)
	return true
}

// Board is the set of puzzle groups declared by one level. At most one group
// is armed at a time.
type Board struct {
	groups map[string]*Group
	order  []string
}

// NewBoard builds one group per sequence. Groups with an empty sequence are
// skipped since they could never be solved.
func NewBoard(sequences map[string][]Note) *Board {
	b := &Board{
		groups: make(map[string]*Group, len(sequences)),
	}
	for id, seq := range sequences {
		if len(seq) == 0 {
			continue
		}
		b.groups[id] = NewGroup(id, seq)
		b.order = append(b.order, id)
	}
	sort.Strings(b.order)
	return b
}

func (b *Board) Group(id string) (*Group, bool) {
	g, ok := b.groups[id]
	return g, ok
}

// Groups returns the groups sorted by id.
func (b *Board) Groups() []*Group {
	out := make([]*Group, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.groups[id])
	}
	return out
}

// Arm makes id the only listening group. Every other group is disarmed, even
// when id is solved; in that case nothing is left listening and Arm returns
// false. Unknown ids change nothing. A partial prefix survives re-arming.
func (b *Board) Arm(id string) bool {
	target, ok := b.groups[id]
	if !ok {
		return false
	}
	for _, g := range b.groups {
		g.armed = false
	}
	if target.solved {
		return false
	}
	target.armed = true
	return true
}

// Disarm clears the listening group, if any.
func (b *Board) Disarm() {
	for _, g := range b.groups {
		g.armed = false
	}
}

// Armed returns the listening group.
func (b *Board) Armed() (*Group, bool) {
	for _, id := range b.order {
		if g := b.groups[id]; g.armed {
			return g, true
		}
	}
	return nil, false
}

// ObserveNote routes a note to the armed group. Notes arriving while nothing
// is armed are discarded.
func (b *Board) ObserveNote(n Note) (string, Outcome) {
	g, ok := b.Armed()
	if !ok {
		return "", Ignored
	}
	return g.id, g.ObserveNote(n)
}

// MarkSolved applies a solved notification. It reports whether the group
// changed; repeated or unknown notifications are no-ops.
func (b *Board) MarkSolved(id string) bool {
	g, ok := b.groups[id]
	if !ok {
		return false
	}
	return g.markSolved()
}

func (b *Board) IsSolved(id string) bool {
	g, ok := b.groups[id]
	return ok && g.solved
}

func (b *Board) AllSolved() bool {
	for _, g := range b.groups {
		if !g.solved {
			return false
		}
	}
	return true
}

func (b *Board) SolvedIDs() []string {
	var out []string
	for _, id := range b.order {
		if b.groups[id].solved {
			out = append(out, id)
		}
	}
	return out
}
