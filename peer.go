/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Seednode/bellpath/game"
	"github.com/Seednode/bellpath/level"
	"github.com/Seednode/bellpath/puzzle"
	"github.com/Seednode/bellpath/session"
	"github.com/skip2/go-qrcode"
)

const resumeInterval = 5 * time.Second

var (
	errPartnerLeft = errors.New("partner left")
	errInterrupted = errors.New("interrupted")
)

func loadLevels(cfg *Config) ([]level.Data, error) {
	if cfg.levels == "" {
		return level.Default()
	}
	return level.LoadDir(cfg.levels)
}

func newStore(cfg *Config) session.Store {
	if cfg.stateFile == "" {
		return session.NewMemoryStore(cfg.namespace)
	}
	return session.NewFileStore(cfg.stateFile, cfg.namespace)
}

func printQR(out io.Writer, code string) error {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return err
	}

	_, err = io.WriteString(out, qr.ToSmallString(false))
	return err
}

func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// runPeer plays one session from the terminal until the partner leaves, the
// input ends, or the player quits.
func runPeer(ctx context.Context, cfg *Config, role puzzle.Role, code string, in io.Reader, out io.Writer) error {
	log := newLogger(cfg, out)

	levels, err := loadLevels(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	guard := newInterruptGuard(log, guardWindow, func() { cancel(errInterrupted) })

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	go guard.watch(ctx, sigs)

	sess, err := session.New(session.Config{
		Role:             role,
		RoomCode:         code,
		Network:          session.NewWebSocketNetwork(cfg.broker, log),
		Store:            newStore(cfg),
		Guard:            guard,
		Logger:           log,
		HandshakeTimeout: cfg.handshake,
	})
	if err != nil {
		return err
	}

	gcfg := game.DefaultConfig()
	gcfg.Role = role
	gcfg.Levels = levels
	gcfg.Sender = sess
	gcfg.Audio = consoleAudio{log: log}
	gcfg.View = consoleView{log: log}
	gcfg.Logger = log
	gcfg.SyncInterval = cfg.syncInterval

	o, err := game.New(gcfg)
	if err != nil {
		return err
	}

	sess.OnMessage(o.HandlePacket)

	sess.OnOpen(func(id string) {
		if role != puzzle.RoleA {
			return
		}

		log.Info().Str("room", id).Msg("room open, waiting for a partner")
		if cfg.qr {
			if err := printQR(out, id); err != nil {
				log.Warn().Err(err).Msg("could not draw room code")
			}
		}
	})

	sess.OnConnected(func() {
		log.Info().Str("room", sess.RoomCode()).Msg("partner connected, type help for commands")
	})

	sess.OnDisconnect(func() {
		cancel(errPartnerLeft)
	})

	sess.OnError(func(err error) {
		cancel(err)
	})

	sess.Connect(ctx)
	defer sess.Disconnect()

	d := &driver{
		o:      o,
		link:   sess,
		out:    out,
		resume: func() { sess.Resume(ctx) },
	}

	lines := make(chan string)
	go scanLines(ctx, in, lines)

	ticker := time.NewTicker(resumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cause := context.Cause(ctx)
			switch {
			case errors.Is(cause, errPartnerLeft):
				log.Warn().Msg("your partner has left the game")
				return nil
			case errors.Is(cause, errInterrupted), errors.Is(cause, context.Canceled):
				return nil
			default:
				return cause
			}
		case <-ticker.C:
			sess.Resume(ctx)
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			err := d.exec(line)
			switch {
			case errors.Is(err, errQuit):
				return nil
			case err != nil:
				fmt.Fprintf(out, "%v\n", err)
			}
		}
	}
}
