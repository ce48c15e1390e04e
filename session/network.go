/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"errors"
)

var (
	ErrIDTaken         = errors.New("session: identity already registered")
	ErrPeerUnavailable = errors.New("session: remote peer unavailable")
	ErrPeerBusy        = errors.New("session: remote peer already paired")
	ErrChannelClosed   = errors.New("session: channel closed")
	ErrPeerClosed      = errors.New("session: peer closed")
)

// Network registers identities with a broker.
type Network interface {
	// Open registers id and returns the live peer. It fails with ErrIDTaken
	// when another peer holds id.
	Open(ctx context.Context, id string) (Peer, error)
}

// Peer is a registered identity.
type Peer interface {
	ID() string

	// Accept blocks until a remote peer dials this one.
	Accept(ctx context.Context) (Channel, error)

	// Dial opens a channel to the peer registered as remoteID.
	Dial(ctx context.Context, remoteID string) (Channel, error)

	// Disconnected reports whether the link to the broker was lost while the
	// peer itself was not closed.
	Disconnected() bool

	// Reconnect restores the broker link under the same identity.
	Reconnect(ctx context.Context) error

	Close() error
}

// Channel is a reliable, ordered data channel between two peers.
type Channel interface {
	// Ready blocks until both ends have opened the channel.
	Ready(ctx context.Context) error

	// Send queues data without waiting on the remote end.
	Send(data []byte) error

	// Receive blocks for the next inbound frame. It returns ErrChannelClosed
	// once the channel is gone and no buffered data remains.
	Receive(ctx context.Context) ([]byte, error)

	Open() bool
	Close() error
}
