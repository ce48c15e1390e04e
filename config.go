/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/bellpath/puzzle"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind        string
	idleTimeout time.Duration
	port        int
	prefix      string
	profile     bool
	tlsCert     string
	tlsKey      string
	verbose     bool
	version     bool

	broker       string
	handshake    time.Duration
	levels       string
	namespace    string
	qr           bool
	stateFile    string
	syncInterval time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.idleTimeout <= 0 {
		return fmt.Errorf("invalid idle timeout (must be positive): %s", c.idleTimeout)
	}
	return nil
}

func (c *Config) validatePeer(role puzzle.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role: %q", role)
	}

	u, err := url.Parse(c.broker)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid broker url (scheme must be ws or wss): %s", c.broker)
	}
	if c.syncInterval <= 0 {
		return fmt.Errorf("invalid sync interval (must be positive): %s", c.syncInterval)
	}
	if c.handshake <= 0 {
		return fmt.Errorf("invalid handshake timeout (must be positive): %s", c.handshake)
	}
	if strings.TrimSpace(c.namespace) == "" {
		return errors.New("--namespace must not be empty")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("BELLPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

func normalizeFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

// bindFlags lets BELLPATH_* variables fill in any flag not given on the
// command line.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "bellpath",
		Short:         "Relay broker for bellpath, a two-player cooperative bell puzzle.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServeBroker(cmd.Context(), cfg, newLogger(cfg, cmd.OutOrStdout()))
		},
	}

	fs := cmd.Flags()
	normalizeFlags(fs)

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BELLPATH_BIND)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 10*time.Minute, "time before idle peers are disconnected (env: BELLPATH_IDLE_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BELLPATH_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BELLPATH_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BELLPATH_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BELLPATH_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BELLPATH_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BELLPATH_VERSION)")

	pfs := cmd.PersistentFlags()
	normalizeFlags(pfs)
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BELLPATH_VERBOSE)")

	bindFlags(v, fs)
	bindFlags(v, pfs)

	cmd.AddCommand(newHostCmd(cfg), newJoinCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("bellpath v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func addPeerFlags(cfg *Config, cmd *cobra.Command) {
	fs := cmd.Flags()
	normalizeFlags(fs)

	fs.StringVar(&cfg.broker, "broker", "ws://127.0.0.1:8080/peer/ws", "websocket url of the relay broker (env: BELLPATH_BROKER)")
	fs.DurationVar(&cfg.handshake, "handshake-timeout", 15*time.Second, "time allowed to reach the partner (env: BELLPATH_HANDSHAKE_TIMEOUT)")
	fs.StringVar(&cfg.levels, "levels", "", "directory of level files to play instead of the built-in journey (env: BELLPATH_LEVELS)")
	fs.StringVar(&cfg.namespace, "namespace", "bellpath", "key namespace for the stored session (env: BELLPATH_NAMESPACE)")
	fs.StringVar(&cfg.stateFile, "state-file", "", "file to keep the session identity in across restarts (env: BELLPATH_STATE_FILE)")
	fs.DurationVar(&cfg.syncInterval, "sync-interval", 50*time.Millisecond, "minimum time between position updates (env: BELLPATH_SYNC_INTERVAL)")

	bindFlags(newViper(), fs)
}

func newHostCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Open a room and wait for a partner.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validatePeer(puzzle.RoleA); err != nil {
				return err
			}
			return runPeer(cmd.Context(), cfg, puzzle.RoleA, "", cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	addPeerFlags(cfg, cmd)
	cmd.Flags().BoolVar(&cfg.qr, "qr", false, "print the room code as a QR code (env: BELLPATH_QR)")
	bindFlags(newViper(), cmd.Flags())

	return cmd
}

func newJoinCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Join the room opened by a partner.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validatePeer(puzzle.RoleB); err != nil {
				return err
			}
			return runPeer(cmd.Context(), cfg, puzzle.RoleB, strings.TrimSpace(args[0]), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	addPeerFlags(cfg, cmd)

	return cmd
}
