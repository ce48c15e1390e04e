/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/Seednode/bellpath/game"
	"github.com/Seednode/bellpath/puzzle"
	"github.com/Seednode/bellpath/session"
)

var (
	errQuit    = errors.New("quit")
	errNoBell  = errors.New("no bell within reach")
	errUsage   = errors.New("usage")
	errUnknown = errors.New("unknown command")
)

const driverHelp = `commands:
  move X Y [ANIM]   walk to a position
  strike [BELL]     strike a bell (player1)
  note NOTE         play gong, shang, jue, zhi or yu (player2)
  pickup [BELL]     lift a bell onto your back
  place             set the carried bell down
  advance           leave through the exit once both players are there
  status            show the level and link state
  bells             list the bells of this level
  gates             list the moon gates of this level
  resume            re-check the link to the partner
  quit              leave the game
`

// link is the part of a session the driver reports on.
type link interface {
	State() session.State
	RoomCode() string
}

// driver turns typed commands into local actions on the orchestrator.
type driver struct {
	o      *game.Orchestrator
	link   link
	out    io.Writer
	resume func()
}

func (d *driver) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprint(d.out, driverHelp)
		return nil
	case "move":
		return d.move(args)
	case "strike":
		id, err := d.bellArg(args)
		if err != nil {
			return err
		}
		return d.o.Strike(id)
	case "note":
		if len(args) != 1 {
			return fmt.Errorf("%w: note NOTE", errUsage)
		}
		n, err := puzzle.ParseNote(args[0])
		if err != nil {
			return err
		}
		return d.o.PlayNote(n)
	case "pickup":
		id, err := d.bellArg(args)
		if err != nil {
			return err
		}
		return d.o.Pickup(id)
	case "place":
		id, ok := d.o.Carrying()
		if !ok {
			return errors.New("not carrying a bell")
		}
		return d.o.Place(id, d.o.LocalPosition())
	case "advance":
		return d.advance()
	case "status":
		d.status()
		return nil
	case "bells":
		d.bells()
		return nil
	case "gates":
		d.gates()
		return nil
	case "resume":
		if d.resume != nil {
			d.resume()
		}
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("%w: %s", errUnknown, cmd)
	}
}

func (d *driver) move(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: move X Y [ANIM]", errUsage)
	}

	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: bad x %q", errUsage, args[0])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: bad y %q", errUsage, args[1])
	}

	animation := "idle"
	if len(args) == 3 {
		animation = args[2]
	}

	from := d.o.LocalPosition()
	to := puzzle.Vec{X: x, Y: y}
	d.o.Move(to, puzzle.Vec{X: to.X - from.X, Y: to.Y - from.Y}, animation)

	return nil
}

// bellArg returns the named bell, or the nearest one in reach.
func (d *driver) bellArg(args []string) (string, error) {
	switch len(args) {
	case 0:
		id, ok := d.o.NearestBell(d.o.LocalPosition())
		if !ok {
			return "", errNoBell
		}
		return id, nil
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("%w: expected at most one bell id", errUsage)
	}
}

func (d *driver) advance() error {
	if d.o.Finished() {
		return game.ErrJourneyOver
	}

	if !d.o.TryAdvance() {
		fmt.Fprintln(d.out, "the way is not open yet")
		return nil
	}

	if !d.o.Finished() {
		fmt.Fprintf(d.out, "on to level %d\n", d.o.Level()+1)
	}

	return nil
}

func (d *driver) status() {
	data := d.o.LevelData()
	local, remote := d.o.LocalPosition(), d.o.RemotePosition()

	fmt.Fprintf(d.out, "level %d: %s\n", d.o.Level()+1, data.Name)
	if d.link != nil {
		fmt.Fprintf(d.out, "link: %s (room %s)\n", d.link.State(), d.link.RoomCode())
	}
	fmt.Fprintf(d.out, "you (%s): %.0f,%.0f  partner: %.0f,%.0f\n", d.o.Role(), local.X, local.Y, remote.X, remote.Y)

	if id, ok := d.o.Armed(); ok {
		fmt.Fprintf(d.out, "armed: %s %v\n", id, d.o.Played(id))
	}
	if id, ok := d.o.Carrying(); ok {
		fmt.Fprintf(d.out, "carrying: %s\n", id)
	}

	groups := make([]string, 0, len(data.PuzzleSequences))
	for id := range data.PuzzleSequences {
		groups = append(groups, id)
	}
	slices.Sort(groups)

	for _, id := range groups {
		state := "unsolved"
		if d.o.IsSolved(id) {
			state = "solved"
		}
		fmt.Fprintf(d.out, "group %s: %s\n", id, state)
	}

	if d.o.Finished() {
		fmt.Fprintln(d.out, "the journey is complete")
	}
}

func (d *driver) bells() {
	for _, b := range d.o.LevelData().Bells {
		st, ok := d.o.Bell(b.ID)
		if !ok {
			continue
		}

		where := fmt.Sprintf("%.0f,%.0f", st.Position.X, st.Position.Y)
		if !st.Visible {
			where = "carried by " + st.Carrier.String()
		}

		fmt.Fprintf(d.out, "%s  %s %s  group %s  %s\n", st.ID, st.Note, st.Note.Label(), st.Group, where)
	}
}

func (d *driver) gates() {
	for _, g := range d.o.LevelData().MoonGates {
		state := "open"
		if d.o.Blocks(g.ID) {
			state = "closed"
		}

		fmt.Fprintf(d.out, "%s  %s  %s\n", g.ID, g.Type, state)
	}
}
