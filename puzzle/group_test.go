/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package puzzle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isPrefix(prefix, full []Note) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			return false
		}
	}
	return true
}

func TestBlueScenario(t *testing.T) {
	b := NewBoard(map[string][]Note{"blue": {Gong, Shang}})
	require.True(t, b.Arm("blue"))

	id, out := b.ObserveNote(Gong)
	assert.Equal(t, "blue", id)
	assert.Equal(t, Progress, out)
	g, _ := b.Group("blue")
	assert.False(t, g.Solved())
	assert.Equal(t, []Note{Gong}, g.Played())

	_, out = b.ObserveNote(Jue)
	assert.Equal(t, Mismatch, out)
	assert.Empty(t, g.Played())

	_, out = b.ObserveNote(Gong)
	assert.Equal(t, Progress, out)
	_, out = b.ObserveNote(Shang)
	assert.Equal(t, Solved, out)
	assert.True(t, g.Solved())
	assert.False(t, g.Armed())

	_, armed := b.Armed()
	assert.False(t, armed)
}

func TestPlayedIsAlwaysAPrefix(t *testing.T) {
	expected := []Note{Zhi, Shang, Yu, Gong}
	g := NewGroup("red", expected)
	b := &Board{groups: map[string]*Group{"red": g}, order: []string{"red"}}
	require.True(t, b.Arm("red"))

	played := []Note{Zhi, Zhi, Shang, Jue, Zhi, Shang, Yu, Yu, Zhi, Shang, Yu, Gong}
	for _, n := range played {
		g.ObserveNote(n)
		assert.Truef(t, isPrefix(g.Played(), expected), "played %v is not a prefix of %v", g.Played(), expected)
	}
	assert.True(t, g.Solved())
}

func TestOutOfOrderAtEveryPositionResets(t *testing.T) {
	expected := []Note{Gong, Shang, Jue}

	for pos := range expected {
		b := NewBoard(map[string][]Note{"g": expected})
		require.True(t, b.Arm("g"))
		g, _ := b.Group("g")

		for i := 0; i < pos; i++ {
			_, out := b.ObserveNote(expected[i])
			require.Equal(t, Progress, out)
		}

		wrong := Yu
		_, out := b.ObserveNote(wrong)
		assert.Equal(t, Mismatch, out, "position %d", pos)
		assert.Empty(t, g.Played())
		assert.False(t, g.Solved())
	}
}

func TestObserveWhileNothingArmedIsDiscarded(t *testing.T) {
	b := NewBoard(map[string][]Note{"red": {Gong}})

	id, out := b.ObserveNote(Gong)
	assert.Empty(t, id)
	assert.Equal(t, Ignored, out)
	assert.False(t, b.IsSolved("red"))
}

func TestArmIsMutuallyExclusive(t *testing.T) {
	b := NewBoard(map[string][]Note{
		"red":   {Gong},
		"blue":  {Zhi, Shang},
		"green": {Yu},
	})

	countArmed := func() int {
		n := 0
		for _, g := range b.Groups() {
			if g.Armed() {
				n++
			}
		}
		return n
	}

	for _, id := range []string{"red", "blue", "green", "blue", "red"} {
		require.True(t, b.Arm(id))
		assert.Equal(t, 1, countArmed())
		armed, ok := b.Armed()
		require.True(t, ok)
		assert.Equal(t, id, armed.ID())
	}

	assert.False(t, b.Arm("missing"))
	assert.Equal(t, 1, countArmed())

	_, out := b.ObserveNote(Gong)
	require.Equal(t, Solved, out)
	assert.Equal(t, 0, countArmed())

	b.Arm("blue")
	assert.False(t, b.Arm("red"), "arming a solved group leaves nothing listening")
	assert.Equal(t, 0, countArmed())
}

func TestPartialPrefixSurvivesRearm(t *testing.T) {
	b := NewBoard(map[string][]Note{"blue": {Zhi, Shang}, "red": {Gong}})
	b.Arm("blue")
	b.ObserveNote(Zhi)

	b.Arm("red")
	b.Arm("blue")
	_, out := b.ObserveNote(Shang)
	assert.Equal(t, Solved, out)
}

func TestMarkSolvedIsIdempotent(t *testing.T) {
	b := NewBoard(map[string][]Note{"red": {Gong}, "blue": {Zhi}})
	b.Arm("red")

	assert.True(t, b.MarkSolved("red"))
	assert.False(t, b.MarkSolved("red"))
	assert.False(t, b.MarkSolved("unknown"))

	g, _ := b.Group("red")
	assert.False(t, g.Armed())
	assert.Equal(t, []string{"red"}, b.SolvedIDs())
	assert.False(t, b.AllSolved())

	b.MarkSolved("blue")
	assert.True(t, b.AllSolved())
}

func TestEmptySequencesAreSkipped(t *testing.T) {
	b := NewBoard(map[string][]Note{"red": {Gong}, "empty": nil})
	_, ok := b.Group("empty")
	assert.False(t, ok)
	assert.Len(t, b.Groups(), 1)
}
