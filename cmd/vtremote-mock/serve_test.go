package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/vtremote-mock/internal/config"
)

// newServeFlags returns a fresh serve command so tests don't share flag state
func newServeFlags(t *testing.T) (*cobra.Command, *serveFlags) {
	t.Helper()
	opts := &serveFlags{}
	cmd := &cobra.Command{Use: "serve"}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "")
	f.StringVar(&opts.listen, "listen", config.DefaultListen, "")
	f.StringVar(&opts.token, "token", "", "")
	f.IntVar(&opts.maxSessions, "max-sessions", config.DefaultMaxSessions, "")
	f.BoolVar(&opts.once, "once", false, "")
	f.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "")
	f.DurationVar(&opts.idleTimeout, "idle-timeout", 0, "")
	f.StringVar(&opts.captureDir, "capture-dir", "", "")
	f.StringVar(&opts.webSocketListen, "ws-listen", "", "")
	f.StringVar(&opts.quicListen, "quic-listen", "", "")
	f.BoolVar(&opts.advertise, "advertise", false, "")
	f.StringVar(&opts.instanceName, "name", config.DefaultInstance, "")
	return cmd, opts
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadServeConfig(t *testing.T) {
	yamlPath := writeConfig(t, "vt.yaml", "version: 1\nlisten: 127.0.0.1:7000\ntoken: fromfile\nonce: true\n")
	tomlPath := writeConfig(t, "vt.toml", "version = 1\nlisten = \"127.0.0.1:7001\"\nmax_sessions = 9\n")

	tests := []struct {
		name            string
		args            []string
		wantListen      string
		wantToken       string
		wantOnce        bool
		wantMaxSessions int
		wantIdle        time.Duration
	}{
		{
			name:            "file values",
			args:            []string{"--config", yamlPath},
			wantListen:      "127.0.0.1:7000",
			wantToken:       "fromfile",
			wantOnce:        true,
			wantMaxSessions: config.DefaultMaxSessions,
		},
		{
			name:            "flags override file",
			args:            []string{"--config", yamlPath, "--token", "fromflag", "--once=false", "--idle-timeout", "30s"},
			wantListen:      "127.0.0.1:7000",
			wantToken:       "fromflag",
			wantMaxSessions: config.DefaultMaxSessions,
			wantIdle:        30 * time.Second,
		},
		{
			name:            "toml file",
			args:            []string{"-c", tomlPath, "--listen", "127.0.0.1:7002"},
			wantListen:      "127.0.0.1:7002",
			wantMaxSessions: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, opts := newServeFlags(t)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}
			cfg, err := loadServeConfig(cmd.Flags(), opts)
			if err != nil {
				t.Fatalf("loadServeConfig() error = %v", err)
			}
			if cfg.Listen != tt.wantListen {
				t.Errorf("Listen = %q, want %q", cfg.Listen, tt.wantListen)
			}
			if cfg.Token != tt.wantToken {
				t.Errorf("Token = %q, want %q", cfg.Token, tt.wantToken)
			}
			if cfg.Once != tt.wantOnce {
				t.Errorf("Once = %v, want %v", cfg.Once, tt.wantOnce)
			}
			if cfg.MaxSessions != tt.wantMaxSessions {
				t.Errorf("MaxSessions = %d, want %d", cfg.MaxSessions, tt.wantMaxSessions)
			}
			if cfg.IdleTimeout != tt.wantIdle {
				t.Errorf("IdleTimeout = %v, want %v", cfg.IdleTimeout, tt.wantIdle)
			}
		})
	}
}

func TestLoadServeConfigRejectsInvalid(t *testing.T) {
	cmd, opts := newServeFlags(t)
	path := writeConfig(t, "vt.yaml", "version: 1\n")
	if err := cmd.ParseFlags([]string{"--config", path, "--log-level", "chatty"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if _, err := loadServeConfig(cmd.Flags(), opts); err == nil {
		t.Error("loadServeConfig() accepted an unknown log level")
	}
}
