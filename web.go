/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Seednode/bellpath/broker"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const timeout time.Duration = 10 * time.Second

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveText(cfg *Config, log zerolog.Logger, what string, body func() string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := io.WriteString(w, body())
		if err != nil {
			log.Debug().Err(err).Str("page", what).Msg("write failed")
			return
		}

		log.Debug().
			Str("page", what).
			Int("bytes", written).
			Str("ip", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("served")
	}
}

func serveVersion(cfg *Config, log zerolog.Logger) httprouter.Handle {
	return serveText(cfg, log, "version", func() string {
		return "bellpath v" + releaseVersion + "\n"
	})
}

func serveHealthCheck(cfg *Config, log zerolog.Logger, b *broker.Broker) httprouter.Handle {
	return serveText(cfg, log, "healthz", func() string {
		s := b.Stats()
		return "Ok " + strconv.Itoa(s.Connections) + " connections, " + strconv.Itoa(s.Pairs) + " pairs\n"
	})
}

func serveRobots(cfg *Config, log zerolog.Logger) httprouter.Handle {
	return serveText(cfg, log, "robots", func() string {
		return "User-agent: *\nDisallow: /\n"
	})
}

// newRouter mounts the broker and the server's own pages under cfg.prefix.
func newRouter(cfg *Config, log zerolog.Logger, b *broker.Broker) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Str("ip", realIP(r)).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, serverError)
	}

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, log, b))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, log))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, log))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	broker.Register(mux, cfg.prefix, b)

	return mux
}

func ServeBroker(ctx context.Context, cfg *Config, log zerolog.Logger) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", releaseVersion).Msg("starting bellpath broker")

	bcfg := broker.DefaultConfig()
	bcfg.IdleTimeout = cfg.idleTimeout
	bcfg.Logger = log
	b := broker.New(bcfg)
	defer b.Close()

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, log, b),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	errs := make(chan error, 1)

	go func() {
		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		return err
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
