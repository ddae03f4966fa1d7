package config

import (
	"fmt"
	"net"
	"time"

	"github.com/muurk/vtremote-mock/internal/logging"
)

// Config is the immutable server configuration shared read-only by every session.
// Field names follow the CLI flags so a file and a command line read the same.
type Config struct {
	Version int `yaml:"version" toml:"version"`

	// Listen is the TCP host:port for the VTR1 listener
	Listen string `yaml:"listen" toml:"listen"`

	// Token is the expected HELLO token; empty disables authentication
	Token string `yaml:"token,omitempty" toml:"token,omitempty"`

	// MaxSessions is advertised over mDNS and logged; it is not enforced
	MaxSessions int `yaml:"max_sessions" toml:"max_sessions"`

	// Once serves a single connection and then stops accepting
	Once bool `yaml:"once" toml:"once"`

	LogLevel string `yaml:"log_level" toml:"log_level"`

	// IdleTimeout closes a session that sends nothing for this long (0 disables)
	IdleTimeout time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`

	// CaptureDir receives one JSONL capture file per session (empty disables)
	CaptureDir string `yaml:"capture_dir,omitempty" toml:"capture_dir,omitempty"`

	// WebSocketListen serves the protocol over WebSocket at /vtr (empty disables)
	WebSocketListen string `yaml:"websocket_listen,omitempty" toml:"websocket_listen,omitempty"`

	// QUICListen serves the protocol over QUIC streams (empty disables)
	QUICListen string `yaml:"quic_listen,omitempty" toml:"quic_listen,omitempty"`

	Advertise    bool   `yaml:"advertise" toml:"advertise"`
	InstanceName string `yaml:"instance_name,omitempty" toml:"instance_name,omitempty"`
}

// Defaults
const (
	currentVersion     = 1
	DefaultListen      = "127.0.0.1:5555"
	DefaultMaxSessions = 4
	DefaultLogLevel    = "info"
	DefaultInstance    = "vtremote-mock"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Version:      currentVersion,
		Listen:       DefaultListen,
		MaxSessions:  DefaultMaxSessions,
		LogLevel:     DefaultLogLevel,
		InstanceName: DefaultInstance,
	}
}

// AuthRequired reports whether HELLO tokens are checked
func (c *Config) AuthRequired() bool {
	return c.Token != ""
}

// Validate checks that the configuration can be served
func (c *Config) Validate() error {
	if c.Version != currentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, currentVersion)
	}
	if err := validateAddr("listen", c.Listen); err != nil {
		return err
	}
	if c.WebSocketListen != "" {
		if err := validateAddr("websocket_listen", c.WebSocketListen); err != nil {
			return err
		}
	}
	if c.QUICListen != "" {
		if err := validateAddr("quic_listen", c.QUICListen); err != nil {
			return err
		}
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", c.MaxSessions)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Advertise && c.InstanceName == "" {
		return fmt.Errorf("instance_name is required when advertise is enabled")
	}
	return nil
}

func validateAddr(field, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s address %q: %w", field, addr, err)
	}
	if port == "" {
		return fmt.Errorf("invalid %s address %q: missing port", field, addr)
	}
	return nil
}
