/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package level

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidLevel = errors.New("level: invalid level")
	ErrNoLevels     = errors.New("level: no levels found")
)

//go:embed levels/*.yaml
var embedded embed.FS

// Default returns the built-in journey.
func Default() ([]Data, error) {
	return Load(embedded, "levels")
}

// LoadDir reads every *.yaml and *.yml file in dir, ordered by file name.
func LoadDir(dir string) ([]Data, error) {
	return Load(os.DirFS(dir), ".")
}

// Load reads level files under root in fsys, ordered by file name, and
// validates each one.
func Load(fsys fs.FS, root string) ([]Data, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		switch path.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, path.Join(root, e.Name()))
		}
	}
	slices.Sort(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoLevels, root)
	}

	levels := make([]Data, 0, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}

		d, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		levels = append(levels, d)
	}

	return levels, nil
}

// Parse decodes and validates a single level document. Unknown keys are
// rejected.
func Parse(raw []byte) (Data, error) {
	var d Data

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	if err := d.Validate(); err != nil {
		return Data{}, err
	}

	return d, nil
}

func invalid(d *Data, format string, args ...any) error {
	return fmt.Errorf("%w %d (%s): %s", ErrInvalidLevel, d.ID, d.Name, fmt.Sprintf(format, args...))
}

// Validate checks the structural rules every level must satisfy.
func (d *Data) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return invalid(d, "dimensions must be positive")
	}

	for _, s := range []struct {
		name string
		x, y float64
	}{
		{"player1", d.SpawnPoints.Player1.X, d.SpawnPoints.Player1.Y},
		{"player2", d.SpawnPoints.Player2.X, d.SpawnPoints.Player2.Y},
	} {
		if s.x < 0 || s.y < 0 {
			return invalid(d, "spawn point %s is negative", s.name)
		}
	}

	if len(d.Platforms) == 0 {
		return invalid(d, "at least one platform is required")
	}

	for group, seq := range d.PuzzleSequences {
		for _, n := range seq {
			if !n.Valid() {
				return invalid(d, "sequence %q has unknown note %q", group, n)
			}
		}
	}

	seen := make(map[string]bool, len(d.Bells))
	for _, b := range d.Bells {
		switch {
		case b.ID == "":
			return invalid(d, "bell without id")
		case seen[b.ID]:
			return invalid(d, "duplicate bell %q", b.ID)
		case b.PuzzleGroup == "":
			return invalid(d, "bell %q has no puzzle group", b.ID)
		case b.DotCount < 1:
			return invalid(d, "bell %q has dot count %d", b.ID, b.DotCount)
		case !b.Note.Valid():
			return invalid(d, "bell %q has unknown note %q", b.ID, b.Note)
		case len(d.PuzzleSequences[b.PuzzleGroup]) == 0:
			return invalid(d, "bell %q group %q has no sequence", b.ID, b.PuzzleGroup)
		}
		seen[b.ID] = true
	}

	for _, g := range d.MoonGates {
		switch g.Type {
		case GatePlayer1, GatePlayer2:
		case GatePuzzle:
			if len(d.PuzzleSequences[g.PuzzleGroup]) == 0 {
				return invalid(d, "puzzle gate %q references unknown group %q", g.ID, g.PuzzleGroup)
			}
		default:
			return invalid(d, "gate %q has unknown type %q", g.ID, g.Type)
		}
	}

	if d.ExitPosition.X > d.Width || d.ExitPosition.Y > d.Height {
		return invalid(d, "exit lies outside the level")
	}

	return nil
}
