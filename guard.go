/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const guardWindow = 3 * time.Second

// interruptGuard makes a single Ctrl-C harmless while a game is running: the
// first one warns, a second inside the window leaves.
type interruptGuard struct {
	log    zerolog.Logger
	window time.Duration
	leave  func()
	now    func() time.Time

	mu    sync.Mutex
	armed bool
	last  time.Time
}

func newInterruptGuard(log zerolog.Logger, window time.Duration, leave func()) *interruptGuard {
	return &interruptGuard{
		log:    log,
		window: window,
		leave:  leave,
		now:    time.Now,
	}
}

func (g *interruptGuard) Install() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.armed = true
	g.last = time.Time{}
}

func (g *interruptGuard) Remove() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.armed = false
}

// interrupt reports whether the process should leave.
func (g *interruptGuard) interrupt() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed {
		return true
	}

	now := g.now()
	if !g.last.IsZero() && now.Sub(g.last) <= g.window {
		return true
	}
	g.last = now

	g.log.Warn().Msgf("a game is in progress, press Ctrl-C again within %s to leave", g.window)

	return false
}

func (g *interruptGuard) watch(ctx context.Context, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if g.interrupt() {
				g.leave()
				return
			}
		}
	}
}
