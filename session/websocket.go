/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Seednode/bellpath/broker"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsSendBuffer    = 64
	wsReceiveBuffer = 1024
	wsWriteWait     = 10 * time.Second
	wsRegisterWait  = 10 * time.Second
)

// WebSocketNetwork registers peers with a bellpath broker. Channel traffic is
// relayed through the broker over the same socket.
type WebSocketNetwork struct {
	URL    string
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

func NewWebSocketNetwork(url string, log zerolog.Logger) *WebSocketNetwork {
	return &WebSocketNetwork{
		URL:    url,
		Dialer: websocket.DefaultDialer,
		Logger: log,
	}
}

func (n *WebSocketNetwork) Open(ctx context.Context, id string) (Peer, error) {
	p := &wsPeer{
		net:      n,
		id:       id,
		log:      n.Logger.With().Str("peer", id).Logger(),
		incoming: make(chan *wsChannel, 1),
		closed:   make(chan struct{}),
	}

	if err := p.connect(ctx); err != nil {
		return nil, err
	}

	return p, nil
}

type dialResult struct {
	frame   broker.Frame
	channel *wsChannel
}

type wsPeer struct {
	net *WebSocketNetwork
	id  string
	log zerolog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	send         chan broker.Frame
	disconnected bool
	channel      *wsChannel
	dialWait     chan dialResult

	incoming  chan *wsChannel
	closeOnce sync.Once
	closed    chan struct{}
}

// connect dials the broker and registers p.id.
func (p *wsPeer) connect(ctx context.Context) error {
	dialer := p.net.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, p.net.URL, nil)
	if err != nil {
		return fmt.Errorf("session: dial broker: %w", err)
	}

	deadline := time.Now().Add(wsRegisterWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	if err := conn.WriteJSON(broker.Frame{Op: broker.OpRegister, ID: p.id}); err != nil {
		conn.Close()
		return fmt.Errorf("session: register: %w", err)
	}

	var reply broker.Frame
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return fmt.Errorf("session: register: %w", err)
	}

	switch {
	case reply.Op == broker.OpError && reply.Code == broker.CodeIDTaken:
		conn.Close()
		return ErrIDTaken
	case reply.Op != broker.OpRegistered:
		conn.Close()
		return fmt.Errorf("session: register: unexpected %s %s", reply.Op, reply.Code)
	}

	_ = conn.SetWriteDeadline(time.Time{})
	_ = conn.SetReadDeadline(time.Time{})

	send := make(chan broker.Frame, wsSendBuffer)

	p.mu.Lock()
	p.conn = conn
	p.send = send
	p.disconnected = false
	p.mu.Unlock()

	go p.writePump(conn, send)
	go p.readPump(conn)

	return nil
}

func (p *wsPeer) readPump(conn *websocket.Conn) {
	defer func() {
		p.mu.Lock()
		if p.conn == conn {
			if p.send != nil {
				close(p.send)
				p.send = nil
			}
			p.conn = nil

			select {
			case <-p.closed:
			default:
				p.disconnected = true
			}
		}
		ch := p.channel
		p.channel = nil
		p.mu.Unlock()

		// The relay rides on this socket.
		if ch != nil {
			ch.closeRemote()
		}
	}()

	for {
		var f broker.Frame
		if err := conn.ReadJSON(&f); err != nil {
			p.log.Debug().Err(err).Msg("broker link closed")
			return
		}

		switch f.Op {
		case broker.OpIncoming:
			ch := newWSChannel(p, f.ID)

			p.mu.Lock()
			busy := p.channel != nil
			if !busy {
				p.channel = ch
			}
			p.mu.Unlock()

			// The broker refuses a second guest; ignore a stray one.
			if busy {
				continue
			}

			select {
			case p.incoming <- ch:
			default:
				ch.Close()
			}

		case broker.OpPaired, broker.OpError:
			res := dialResult{frame: f}

			// Install the channel before anything the partner sends can arrive.
			p.mu.Lock()
			wait := p.dialWait
			p.dialWait = nil
			if f.Op == broker.OpPaired {
				res.channel = newWSChannel(p, f.ID)
				p.channel = res.channel
			}
			p.mu.Unlock()

			if wait != nil {
				wait <- res
				continue
			}
			p.log.Debug().Str("op", string(f.Op)).Str("code", f.Code).Msg("unsolicited broker reply")

		case broker.OpData:
			p.mu.Lock()
			ch := p.channel
			p.mu.Unlock()

			if ch != nil {
				ch.deliver(f.Data)
			}

		case broker.OpPeerLeft:
			p.mu.Lock()
			ch := p.channel
			p.channel = nil
			p.mu.Unlock()

			if ch != nil {
				ch.closeRemote()
			}
		}
	}
}

func (p *wsPeer) writePump(conn *websocket.Conn, send <-chan broker.Frame) {
	defer conn.Close()

	for f := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(f); err != nil {
			return
		}
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait),
	)
}

func (p *wsPeer) enqueue(f broker.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.send == nil {
		return ErrChannelClosed
	}

	select {
	case p.send <- f:
		return nil
	default:
		return errChannelFull
	}
}

func (p *wsPeer) ID() string { return p.id }

func (p *wsPeer) Accept(ctx context.Context) (Channel, error) {
	select {
	case ch := <-p.incoming:
		return ch, nil
	case <-p.closed:
		return nil, ErrPeerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *wsPeer) Dial(ctx context.Context, remoteID string) (Channel, error) {
	wait := make(chan dialResult, 1)

	p.mu.Lock()
	p.dialWait = wait
	p.mu.Unlock()

	if err := p.enqueue(broker.Frame{Op: broker.OpConnect, ID: remoteID}); err != nil {
		return nil, err
	}

	select {
	case res := <-wait:
		if res.channel != nil {
			return res.channel, nil
		}

		switch res.frame.Code {
		case broker.CodePeerBusy:
			return nil, ErrPeerBusy
		case broker.CodePeerUnavailable:
			return nil, ErrPeerUnavailable
		default:
			return nil, fmt.Errorf("session: connect: %s", res.frame.Code)
		}

	case <-p.closed:
		return nil, ErrPeerClosed

	case <-ctx.Done():
		p.mu.Lock()
		if p.dialWait == wait {
			p.dialWait = nil
		}
		p.mu.Unlock()

		return nil, ctx.Err()
	}
}

func (p *wsPeer) Disconnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.disconnected
}

func (p *wsPeer) Reconnect(ctx context.Context) error {
	select {
	case <-p.closed:
		return ErrPeerClosed
	default:
	}

	if !p.Disconnected() {
		return nil
	}

	return p.connect(ctx)
}

func (p *wsPeer) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)

		p.mu.Lock()
		ch := p.channel
		p.channel = nil
		if p.send != nil {
			close(p.send)
			p.send = nil
		}
		p.mu.Unlock()

		if ch != nil {
			ch.closeRemote()
		}
	})

	return nil
}

func (p *wsPeer) release(c *wsChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == c {
		p.channel = nil
	}
}

type wsChannel struct {
	peer   *wsPeer
	remote string
	in     chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newWSChannel(p *wsPeer, remote string) *wsChannel {
	return &wsChannel{
		peer:   p,
		remote: remote,
		in:     make(chan []byte, wsReceiveBuffer),
		done:   make(chan struct{}),
	}
}

// Ready returns at once; the broker only pairs peers that are both online.
func (c *wsChannel) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Open() {
		return ErrChannelClosed
	}
	return nil
}

func (c *wsChannel) Send(data []byte) error {
	if !c.Open() {
		return ErrChannelClosed
	}

	return c.peer.enqueue(broker.Frame{Op: broker.OpData, Data: data})
}

func (c *wsChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	default:
	}

	select {
	case data := <-c.in:
		return data, nil
	case <-c.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *wsChannel) Open() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.peer.enqueue(broker.Frame{Op: broker.OpLeave})
		c.peer.release(c)
	})
	return nil
}

func (c *wsChannel) closeRemote() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *wsChannel) deliver(data []byte) {
	select {
	case c.in <- append([]byte(nil), data...):
	default:
		c.peer.log.Warn().Msg("receive buffer full, dropping frame")
	}
}
