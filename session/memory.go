/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"errors"
	"sync"
)

const memoryChannelBuffer = 256

var errChannelFull = errors.New("session: channel buffer full")

// MemoryNetwork is an in-process broker. Channels between its peers are
// buffered pipes.
type MemoryNetwork struct {
	mu    sync.Mutex
	peers map[string]*memoryPeer
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		peers: make(map[string]*memoryPeer),
	}
}

func (n *MemoryNetwork) Open(ctx context.Context, id string) (Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, taken := n.peers[id]; taken {
		return nil, ErrIDTaken
	}

	p := &memoryPeer{
		net:      n,
		id:       id,
		incoming: make(chan *memoryChannel, 1),
		closed:   make(chan struct{}),
	}
	n.peers[id] = p

	return p, nil
}

// Registered reports whether id is currently held.
func (n *MemoryNetwork) Registered(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, ok := n.peers[id]
	return ok
}

// DropBroker severs id's broker link, as a network blip would. Existing
// channels stay up; the identity is released.
func (n *MemoryNetwork) DropBroker(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, ok := n.peers[id]
	if !ok {
		return false
	}
	delete(n.peers, id)

	p.mu.Lock()
	p.disconnected = true
	p.mu.Unlock()

	return true
}

func (n *MemoryNetwork) lookup(id string) (*memoryPeer, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, ok := n.peers[id]
	return p, ok
}

func (n *MemoryNetwork) release(p *memoryPeer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.peers[p.id] == p {
		delete(n.peers, p.id)
	}
}

type memoryPeer struct {
	net *MemoryNetwork
	id  string

	incoming chan *memoryChannel

	mu           sync.Mutex
	disconnected bool
	closeOnce    sync.Once
	closed       chan struct{}
}

func (p *memoryPeer) ID() string { return p.id }

func (p *memoryPeer) Accept(ctx context.Context) (Channel, error) {
	select {
	case c := <-p.incoming:
		c.pipe.open()
		return c, nil
	case <-p.closed:
		return nil, ErrPeerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *memoryPeer) Dial(ctx context.Context, remoteID string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Disconnected() {
		return nil, ErrPeerUnavailable
	}

	remote, ok := p.net.lookup(remoteID)
	if !ok || remote == p {
		return nil, ErrPeerUnavailable
	}

	local, far := newMemoryPipe()

	select {
	case remote.incoming <- far:
		return local, nil
	case <-remote.closed:
		return nil, ErrPeerUnavailable
	default:
		return nil, ErrPeerBusy
	}
}

func (p *memoryPeer) Disconnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.disconnected
}

func (p *memoryPeer) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-p.closed:
		return ErrPeerClosed
	default:
	}

	p.net.mu.Lock()
	defer p.net.mu.Unlock()

	if held, taken := p.net.peers[p.id]; taken && held != p {
		return ErrIDTaken
	}
	p.net.peers[p.id] = p

	p.mu.Lock()
	p.disconnected = false
	p.mu.Unlock()

	return nil
}

func (p *memoryPeer) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.net.release(p)
	})
	return nil
}

type memoryPipe struct {
	openOnce  sync.Once
	opened    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func (p *memoryPipe) open() {
	p.openOnce.Do(func() { close(p.opened) })
}

func (p *memoryPipe) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

type memoryChannel struct {
	pipe *memoryPipe
	in   chan []byte
	peer *memoryChannel
}

func newMemoryPipe() (*memoryChannel, *memoryChannel) {
	pipe := &memoryPipe{
		opened: make(chan struct{}),
		done:   make(chan struct{}),
	}

	a := &memoryChannel{pipe: pipe, in: make(chan []byte, memoryChannelBuffer)}
	b := &memoryChannel{pipe: pipe, in: make(chan []byte, memoryChannelBuffer)}
	a.peer, b.peer = b, a

	return a, b
}

func (c *memoryChannel) Ready(ctx context.Context) error {
	select {
	case <-c.pipe.opened:
	case <-c.pipe.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.pipe.done:
		return ErrChannelClosed
	default:
		return nil
	}
}

func (c *memoryChannel) Send(data []byte) error {
	if !c.Open() {
		return ErrChannelClosed
	}

	buf := append([]byte(nil), data...)

	select {
	case c.peer.in <- buf:
		return nil
	default:
		return errChannelFull
	}
}

func (c *memoryChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	default:
	}

	select {
	case data := <-c.in:
		return data, nil
	case <-c.pipe.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memoryChannel) Open() bool {
	select {
	case <-c.pipe.done:
		return false
	default:
	}

	select {
	case <-c.pipe.opened:
		return true
	default:
		return false
	}
}

func (c *memoryChannel) Close() error {
	c.pipe.close()
	return nil
}
