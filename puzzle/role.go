/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package puzzle

import (
	"fmt"
	"math"
	"strings"
)

// Role is one of the two fixed participants of a session.
//
// RoleA hosts the session and strikes bells; RoleB joins with the room code
// and plays the notes back.
type Role string

const (
	RoleNone Role = ""
	RoleA    Role = "player1"
	RoleB    Role = "player2"
)

// ParseRole accepts the wire names as well as "a"/"host" and "b"/"guest".
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "player1", "a", "host":
		return RoleA, nil
	case "player2", "b", "guest", "join":
		return RoleB, nil
	default:
		return RoleNone, fmt.Errorf("puzzle: unknown role %q", raw)
	}
}

func (r Role) Valid() bool {
	return r == RoleA || r == RoleB
}

// Other returns the partner role, or RoleNone for an invalid role.
func (r Role) Other() Role {
	switch r {
	case RoleA:
		return RoleB
	case RoleB:
		return RoleA
	default:
		return RoleNone
	}
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// Vec is a world position in level pixels.
type Vec struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (v Vec) Add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec) Dist(o Vec) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}
