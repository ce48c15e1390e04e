/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package broker is the rendezvous point for peers: it registers identities,
// pairs a guest with the host it names, and relays frames between the two.
// It never decodes game traffic and holds no game state.
package broker

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const maxIDLength = 64

type Config struct {
	IdleTimeout time.Duration
	SendBuffer  int
	Logger      zerolog.Logger
	Registry    *prometheus.Registry
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout: 10 * time.Minute,
		SendBuffer:  64,
		Logger:      zerolog.Nop(),
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	return cfg
}

type client struct {
	conn       *websocket.Conn
	connID     string
	send       chan Frame
	id         string
	partner    *client
	lastActive time.Time
}

type inbound struct {
	client *client
	frame  Frame
}

// Stats is a point-in-time view of the broker.
type Stats struct {
	Connections int `json:"connections"`
	Registered  int `json:"registered"`
	Pairs       int `json:"pairs"`
}

type Broker struct {
	cfg     Config
	log     zerolog.Logger
	metrics *metrics

	register chan *client
	unreg    chan *client
	frames   chan inbound
	quit     chan struct{}
	stopped  chan struct{}

	mu      sync.RWMutex
	clients map[*client]bool
	peers   map[string]*client
	pairs   int

	closeOnce sync.Once
}

func New(cfg Config) *Broker {
	cfg = normalizeConfig(cfg)

	b := &Broker{
		cfg:      cfg,
		log:      cfg.Logger,
		metrics:  newMetrics(cfg.Registry),
		register: make(chan *client),
		unreg:    make(chan *client),
		frames:   make(chan inbound),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		clients:  make(map[*client]bool),
		peers:    make(map[string]*client),
	}

	go b.run()

	return b
}

// Registry holds the broker's metrics.
func (b *Broker) Registry() *prometheus.Registry {
	return b.cfg.Registry
}

func (b *Broker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Connections: len(b.clients),
		Registered:  len(b.peers),
		Pairs:       b.pairs,
	}
}

// Registered reports whether id is currently held by a connection.
func (b *Broker) Registered(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.peers[id]
	return ok
}

// Close drops every connection and stops the broker.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		close(b.quit)
		<-b.stopped
	})
}

func (b *Broker) run() {
	defer close(b.stopped)

	var reap <-chan time.Time
	if b.cfg.IdleTimeout > 0 {
		ticker := time.NewTicker(b.cfg.IdleTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case c := <-b.register:
			b.mu.Lock()
			b.clients[c] = true
			b.mu.Unlock()

			b.metrics.connections.Inc()
			b.log.Debug().Str("conn", c.connID).Msg("connection opened")

		case c := <-b.unreg:
			b.drop(c)

		case in := <-b.frames:
			b.handle(in.client, in.frame)

		case now := <-reap:
			b.reapIdle(now)

		case <-b.quit:
			b.mu.Lock()
			for c := range b.clients {
				close(c.send)
				_ = c.conn.Close()
				delete(b.clients, c)
			}
			clear(b.peers)
			b.pairs = 0
			b.mu.Unlock()
			return
		}
	}
}

func (b *Broker) handle(c *client, f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.clients[c] {
		return
	}

	c.lastActive = time.Now()
	b.metrics.frames.WithLabelValues(f.Op.label()).Inc()

	switch f.Op {
	case OpRegister:
		id := strings.TrimSpace(f.ID)
		switch {
		case c.id != "" || id == "" || len(id) > maxIDLength:
			b.rejectLocked(c, CodeBadFrame, f.ID)
		case b.peers[id] != nil:
			b.rejectLocked(c, CodeIDTaken, id)
		default:
			c.id = id
			b.peers[id] = c
			b.metrics.registered.Inc()
			b.sendLocked(c, Frame{Op: OpRegistered, ID: id})
			b.log.Info().Str("id", id).Msg("peer registered")
		}

	case OpConnect:
		target := b.peers[f.ID]
		switch {
		case c.id == "":
			b.rejectLocked(c, CodeNotRegistered, f.ID)
		case target == nil || target == c:
			b.rejectLocked(c, CodePeerUnavailable, f.ID)
		case target.partner != nil || c.partner != nil:
			b.rejectLocked(c, CodePeerBusy, f.ID)
		default:
			c.partner, target.partner = target, c
			b.pairs++
			b.metrics.pairs.Inc()
			b.sendLocked(target, Frame{Op: OpIncoming, ID: c.id})
			b.sendLocked(c, Frame{Op: OpPaired, ID: target.id})
			b.log.Info().Str("host", target.id).Str("guest", c.id).Msg("peers paired")
		}

	case OpData:
		if c.partner == nil {
			b.rejectLocked(c, CodeNotPaired, "")
			return
		}
		c.partner.lastActive = c.lastActive
		b.sendLocked(c.partner, Frame{Op: OpData, Data: f.Data})

	case OpLeave:
		b.unpairLocked(c)

	default:
		b.rejectLocked(c, CodeBadFrame, "")
	}
}

func (b *Broker) drop(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.clients[c] {
		return
	}

	b.unpairLocked(c)

	if c.id != "" && b.peers[c.id] == c {
		delete(b.peers, c.id)
		b.metrics.registered.Dec()
		b.log.Info().Str("id", c.id).Msg("peer released")
	}

	delete(b.clients, c)
	close(c.send)
	b.metrics.connections.Dec()
}

func (b *Broker) unpairLocked(c *client) {
	p := c.partner
	if p == nil {
		return
	}

	c.partner, p.partner = nil, nil
	b.pairs--
	b.metrics.pairs.Dec()
	b.sendLocked(p, Frame{Op: OpPeerLeft, ID: c.id})
}

func (b *Broker) reapIdle(now time.Time) {
	cutoff := now.Add(-b.cfg.IdleTimeout)

	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		if c.lastActive.Before(cutoff) {
			b.metrics.reaped.Inc()
			b.log.Info().Str("conn", c.connID).Str("id", c.id).Msg("reaping idle connection")
			_ = c.conn.Close()
		}
	}
}

func (b *Broker) rejectLocked(c *client, code, id string) {
	b.metrics.rejections.WithLabelValues(code).Inc()
	b.sendLocked(c, errorFrame(code, id))
}

// sendLocked never blocks the run loop; a client that cannot keep up is
// disconnected.
func (b *Broker) sendLocked(c *client, f Frame) {
	select {
	case c.send <- f:
	default:
		b.log.Warn().Str("conn", c.connID).Msg("send buffer full, closing")
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades the request and pumps frames until the socket closes.
func (b *Broker) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	c := &client{
		conn:       conn,
		connID:     uuid.NewString(),
		send:       make(chan Frame, b.cfg.SendBuffer),
		lastActive: time.Now(),
	}

	select {
	case b.register <- c:
	case <-b.quit:
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump(b)
}

func (c *client) readPump(b *Broker) {
	defer func() {
		select {
		case b.unreg <- c:
		case <-b.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}

		select {
		case b.frames <- inbound{client: c, frame: f}:
		case <-b.quit:
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for f := range c.send {
		if err := c.conn.WriteJSON(f); err != nil {
			return
		}
	}
}
