package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/vtremote-mock/internal/config"
	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/server"
)

// serveFlags mirrors config.Config; only flags set on the command line
// override the configuration file
type serveFlags struct {
	configPath      string
	listen          string
	token           string
	maxSessions     int
	once            bool
	logLevel        string
	idleTimeout     time.Duration
	captureDir      string
	webSocketListen string
	quicListen      string
	advertise       bool
	instanceName    string
}

var serveOpts serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Start the VTR1 mock server.

Settings are read from --config (YAML, or TOML when the file ends in .toml),
falling back to the user configuration file if it exists. Flags given on the
command line override values from either file.

Each connection runs one session: HELLO, CONFIGURE, any number of FRAME and
PING messages, then FLUSH. With --once the server exits after the first
session ends.`,
	Example: `  # Listen on the default 127.0.0.1:5555 without authentication
  vtremote-mock serve

  # Require a token and serve a single session
  vtremote-mock serve --token s3cret --once

  # Also accept WebSocket and QUIC clients, advertise over mDNS
  vtremote-mock serve --listen 0.0.0.0:5555 --ws-listen :8080 --quic-listen :5556 --advertise

  # Record every message to ./captures/session-<id>.jsonl
  vtremote-mock serve --capture-dir ./captures --log-level debug`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.configPath, "config", "c", "", "Configuration file (.yaml or .toml)")
	f.StringVar(&serveOpts.listen, "listen", config.DefaultListen, "TCP address to listen on")
	f.StringVar(&serveOpts.token, "token", "", "Expected HELLO token (empty disables authentication)")
	f.IntVar(&serveOpts.maxSessions, "max-sessions", config.DefaultMaxSessions, "Advertised session limit (informational)")
	f.BoolVar(&serveOpts.once, "once", false, "Serve a single session, then exit")
	f.StringVar(&serveOpts.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	f.DurationVar(&serveOpts.idleTimeout, "idle-timeout", 0, "Close sessions idle for this long (0 disables)")
	f.StringVar(&serveOpts.captureDir, "capture-dir", "", "Directory for per-session JSONL message captures")
	f.StringVar(&serveOpts.webSocketListen, "ws-listen", "", "Also serve over WebSocket at this address")
	f.StringVar(&serveOpts.quicListen, "quic-listen", "", "Also serve over QUIC at this address")
	f.BoolVar(&serveOpts.advertise, "advertise", false, "Advertise the server over mDNS")
	f.StringVar(&serveOpts.instanceName, "name", config.DefaultInstance, "mDNS instance name")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd.Flags(), &serveOpts)
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logging.Sync()

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	logging.Info("vtremote-mock ready",
		zap.String("listen", srv.Addr().String()),
		zap.String("log_level", cfg.LogLevel),
	)
	return srv.Start(context.Background())
}

// loadServeConfig reads the configuration file and applies changed flags
func loadServeConfig(flags *pflag.FlagSet, opts *serveFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if flags.Changed("listen") {
		cfg.Listen = opts.listen
	}
	if flags.Changed("token") {
		cfg.Token = opts.token
	}
	if flags.Changed("max-sessions") {
		cfg.MaxSessions = opts.maxSessions
	}
	if flags.Changed("once") {
		cfg.Once = opts.once
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("idle-timeout") {
		cfg.IdleTimeout = opts.idleTimeout
	}
	if flags.Changed("capture-dir") {
		cfg.CaptureDir = opts.captureDir
	}
	if flags.Changed("ws-listen") {
		cfg.WebSocketListen = opts.webSocketListen
	}
	if flags.Changed("quic-listen") {
		cfg.QUICListen = opts.quicListen
	}
	if flags.Changed("advertise") {
		cfg.Advertise = opts.advertise
	}
	if flags.Changed("name") {
		cfg.InstanceName = opts.instanceName
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
