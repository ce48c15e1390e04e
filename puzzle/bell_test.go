/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package puzzle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickupThenPlaceReleasesToken(t *testing.T) {
	b := NewBell("l1-bell-1", "red", 1, Gong, Vec{X: 480, Y: 410})
	require.True(t, b.Visible())

	require.NoError(t, b.Pickup(RoleB))
	assert.Equal(t, RoleB, b.Carrier())
	assert.False(t, b.Visible())

	require.NoError(t, b.Place(RoleB, Vec{X: 600, Y: 420}))
	assert.Equal(t, RoleNone, b.Carrier())
	assert.True(t, b.Visible())
	assert.Equal(t, Vec{X: 600, Y: 420}, b.Position())
}

func TestPickupOfHeldBellIsRejected(t *testing.T) {
	b := NewBell("l1-bell-1", "red", 1, Gong, Vec{X: 1, Y: 2})
	require.NoError(t, b.Pickup(RoleA))

	err := b.Pickup(RoleB)
	assert.ErrorIs(t, err, ErrBellCarried)
	assert.Equal(t, RoleA, b.Carrier())
	assert.Equal(t, Vec{X: 1, Y: 2}, b.Position())
}

func TestPlaceByNonHolderIsRejected(t *testing.T) {
	b := NewBell("b", "red", 1, Gong, Vec{})

	assert.ErrorIs(t, b.Place(RoleB, Vec{X: 9}), ErrNotCarrier)

	require.NoError(t, b.Pickup(RoleA))
	assert.ErrorIs(t, b.Place(RoleB, Vec{X: 9}), ErrNotCarrier)
	assert.Equal(t, RoleA, b.Carrier())
	assert.Equal(t, Vec{}, b.Position())
}

func TestInvalidRoleCannotTouchToken(t *testing.T) {
	b := NewBell("b", "red", 1, Gong, Vec{})
	assert.ErrorIs(t, b.Pickup(RoleNone), ErrInvalidRole)
	assert.ErrorIs(t, b.Place(Role("ghost"), Vec{}), ErrInvalidRole)
}

func TestRemoteUpdatesApplyUnconditionally(t *testing.T) {
	b := NewBell("b", "red", 1, Gong, Vec{})
	require.NoError(t, b.Pickup(RoleA))

	// Partner's pickup raced ours; the later message wins.
	b.ApplyRemotePickup(RoleB, Vec{X: 5})
	assert.Equal(t, RoleB, b.Carrier())

	b.ApplyRemotePlace(Vec{X: 7, Y: 8})
	assert.Equal(t, RoleNone, b.Carrier())
	assert.Equal(t, Vec{X: 7, Y: 8}, b.Position())
}
