/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const roomCodeBytes = 5

// NewRoomCode returns a short code a player can read aloud or type. The
// base58 alphabet has no 0, O, I or l.
func NewRoomCode() (string, error) {
	buf := make([]byte, roomCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return base58.Encode(buf), nil
}

func NewGuestID() string {
	return uuid.NewString()
}

// UnloadGuard warns before the process goes away mid-game.
type UnloadGuard interface {
	Install()
	Remove()
}

type nopGuard struct{}

func (nopGuard) Install() {}
func (nopGuard) Remove()  {}

// NopGuard does nothing.
var NopGuard UnloadGuard = nopGuard{}
