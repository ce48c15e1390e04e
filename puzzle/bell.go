/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package puzzle

import (
	"errors"
	"fmt"
)

var (
	ErrBellCarried = errors.New("puzzle: bell is already carried")
	ErrNotCarrier  = errors.New("puzzle: bell is not carried by this role")
	ErrInvalidRole = errors.New("puzzle: invalid role")
)

// Bell is a struck, carryable puzzle piece. carrier is the carry token: at
// most one role holds a bell at any instant, and a held bell is hidden from
// world interaction.
type Bell struct {
	ID    string
	Group string
	Order int
	Note  Note

	pos     Vec
	carrier Role
}

func NewBell(id, group string, order int, note Note, pos Vec) *Bell {
	return &Bell{
		ID:    id,
		Group: group,
		Order: order,
		Note:  note,
		pos:   pos,
	}
}

func (b *Bell) Position() Vec { return b.pos }

func (b *Bell) Carrier() Role { return b.carrier }

// Visible reports whether the bell takes part in world interaction.
func (b *Bell) Visible() bool { return b.carrier == RoleNone }

// Pickup takes the carry token for role. It fails without changing anything
// if any role already holds the bell.
func (b *Bell) Pickup(role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if b.carrier != RoleNone {
		return fmt.Errorf("%w: %s holds %s", ErrBellCarried, b.carrier, b.ID)
	}
	b.carrier = role
	return nil
}

// Place releases the carry token held by role and drops the bell at pos.
func (b *Bell) Place(role Role, pos Vec) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if b.carrier != role {
		return fmt.Errorf("%w: %s on %s", ErrNotCarrier, role, b.ID)
	}
	b.carrier = RoleNone
	b.pos = pos
	return nil
}

// ApplyRemotePickup mirrors a pickup announced by the partner. It is applied
// without checking local state, so two pickups racing within one round trip
// end with whichever message arrived last.
func (b *Bell) ApplyRemotePickup(role Role, pos Vec) {
	b.carrier = role
	b.pos = pos
}

// ApplyRemotePlace mirrors a place announced by the partner.
func (b *Bell) ApplyRemotePlace(pos Vec) {
	b.carrier = RoleNone
	b.pos = pos
}
