// Package config provides server configuration for vtremote-mock.
//
// A Config is built once at startup from defaults, an optional file and CLI
// flags, validated, and then shared read-only by every session. Nothing in
// this package is consulted after the first connection is accepted.
//
// # Configuration File
//
// Files may be YAML (default) or TOML, chosen by extension:
//
//	version: 1
//	listen: 127.0.0.1:5555
//	token: s3cret
//	max_sessions: 4
//	idle_timeout: 30s
//	capture_dir: ./captures
//	advertise: true
//
// When no --config flag is given the default location is used if present:
//   - Linux: $XDG_CONFIG_HOME/vtremote-mock/config.yaml or $HOME/.config/vtremote-mock/config.yaml
//   - macOS: $HOME/.config/vtremote-mock/config.yaml
//   - Windows: %LOCALAPPDATA%\vtremote-mock\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("mock.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Save is serialized by a package mutex. A loaded Config must not be mutated
// once it has been handed to the server.
package config
