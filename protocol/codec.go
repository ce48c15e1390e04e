/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownKind = errors.New("protocol: unknown message kind")
	ErrMalformed   = errors.New("protocol: malformed message")
)

// Envelope is the wire form of every message.
type Envelope struct {
	Type      Kind            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// Packet is a decoded message with the sender's advisory send time. The
// timestamp is never used for ordering or conflict resolution.
type Packet struct {
	Message   Message
	Timestamp time.Time
}

// Encode wraps msg in an envelope stamped with at.
func Encode(msg Message, at time.Time) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{
		Type:      msg.Kind(),
		Payload:   payload,
		Timestamp: at.UnixMilli(),
	})
}

// Decode parses one envelope into its typed payload.
func Decode(data []byte) (Packet, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg, err := newMessage(env.Type)
	if err != nil {
		return Packet{}, err
	}

	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return Packet{}, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
		}
	}

	out := deref(msg)
	if err := out.validate(); err != nil {
		return Packet{}, err
	}

	return Packet{
		Message:   out,
		Timestamp: time.UnixMilli(env.Timestamp),
	}, nil
}

func newMessage(k Kind) (any, error) {
	switch k {
	case KindPlayerMove:
		return &PlayerMove{}, nil
	case KindBellStrike:
		return &BellStrike{}, nil
	case KindBellPickup:
		return &BellPickup{}, nil
	case KindBellPlace:
		return &BellPlace{}, nil
	case KindNotePlay:
		return &NotePlay{}, nil
	case KindPuzzleSolved:
		return &PuzzleSolved{}, nil
	case KindLevelComplete:
		return &LevelComplete{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
}

func deref(v any) Message {
	switch m := v.(type) {
	case *PlayerMove:
		return *m
	case *BellStrike:
		return *m
	case *BellPickup:
		return *m
	case *BellPlace:
		return *m
	case *NotePlay:
		return *m
	case *PuzzleSolved:
		return *m
	case *LevelComplete:
		return *m
	}
	return nil
}

func malformed(k Kind, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrMalformed, k, reason)
}

func (m PlayerMove) validate() error {
	if !m.Role.Valid() {
		return malformed(m.Kind(), "invalid role")
	}
	return nil
}

func (m BellStrike) validate() error {
	if strings.TrimSpace(m.BellID) == "" {
		return malformed(m.Kind(), "missing bellId")
	}
	if !m.Note.Valid() {
		return malformed(m.Kind(), "invalid note")
	}
	return nil
}

func (m BellPickup) validate() error {
	if strings.TrimSpace(m.BellID) == "" {
		return malformed(m.Kind(), "missing bellId")
	}
	return nil
}

func (m BellPlace) validate() error {
	if strings.TrimSpace(m.BellID) == "" {
		return malformed(m.Kind(), "missing bellId")
	}
	return nil
}

func (m NotePlay) validate() error {
	if !m.Note.Valid() {
		return malformed(m.Kind(), "invalid note")
	}
	return nil
}

func (m PuzzleSolved) validate() error {
	if strings.TrimSpace(m.PuzzleGroup) == "" {
		return malformed(m.Kind(), "missing puzzleGroup")
	}
	return nil
}

func (m LevelComplete) validate() error {
	if m.Level != nil && *m.Level < 0 {
		return malformed(m.Kind(), "negative level")
	}
	return nil
}
