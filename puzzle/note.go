/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package puzzle holds the per-peer replica of a level's puzzle state:
// pentatonic notes, puzzle groups with their sequence state machine,
// carryable bells and moon gates.
//
// Nothing in this package talks to the network. Each peer mutates its own
// replica in response to local actions or received messages.
package puzzle

import (
	"fmt"
	"strings"
)

// Note is one tone of the five-note pentatonic scale (宫商角徵羽).
type Note string

const (
	Gong  Note = "gong"
	Shang Note = "shang"
	Jue   Note = "jue"
	Zhi   Note = "zhi"
	Yu    Note = "yu"
)

var notes = []Note{Gong, Shang, Jue, Zhi, Yu}

var noteLabels = map[Note]string{
	Gong:  "宫",
	Shang: "商",
	Jue:   "角",
	Zhi:   "徵",
	Yu:    "羽",
}

// Tuned on C pentatonic, fifth octave.
var noteFrequencies = map[Note]float64{
	Gong:  523.25,
	Shang: 587.33,
	Jue:   659.25,
	Zhi:   783.99,
	Yu:    880.00,
}

// Notes returns the scale in ascending order.
func Notes() []Note {
	return append([]Note(nil), notes...)
}

// ParseNote accepts a note name in any case.
func ParseNote(raw string) (Note, error) {
	n := Note(strings.ToLower(strings.TrimSpace(raw)))
	if !n.Valid() {
		return "", fmt.Errorf("puzzle: unknown note %q", raw)
	}
	return n, nil
}

func (n Note) Valid() bool {
	_, ok := noteLabels[n]
	return ok
}

// Label is the Chinese character shown on bells for this note.
func (n Note) Label() string {
	return noteLabels[n]
}

// Frequency is the fundamental in Hz, or 0 for an invalid note.
func (n Note) Frequency() float64 {
	return noteFrequencies[n]
}

func (n Note) String() string {
	return string(n)
}
