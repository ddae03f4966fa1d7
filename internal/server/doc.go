// Package server implements the connection driver of the vtremote mock.
//
// The server accepts byte streams on up to three transports and runs one
// session.Session per stream on its own goroutine:
//
//   - TCP on the main listen address (always enabled)
//   - WebSocket at /vtr on a separate HTTP listener (gorilla/websocket)
//   - QUIC on a UDP address; the first bidirectional stream of each
//     connection carries the session (quic-go, ALPN "vtr1")
//
// Sessions share only the read-only config.Config and, when a capture
// directory is set, the Capture recorder.
//
// # Once Mode
//
// With Once set the server serves a single session. The TCP listener is
// closed as soon as one connection is accepted, and the server shuts down
// when that session ends.
//
// # Wire Capture
//
// When CaptureDir is set every message in either direction is appended to
// <dir>/session-<id>.jsonl as one JSON object per line:
//
//	{"timestamp":"...","session":"...","direction":"in","type":"HELLO",
//	 "type_code":1,"length":24,"payload_hex":"...","payload_ascii":"..."}
//
// Payload dumps are truncated to 4 KiB; length always reports the full size.
//
// # Usage Example
//
//	cfg := config.Default()
//	cfg.Token = "s3cret"
//
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal, ctx cancellation or, in once
//	// mode, the end of the session
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The server handles SIGINT and SIGTERM signals for graceful shutdown:
//  1. Withdraw the mDNS advertisement
//  2. Stop accepting new connections on every transport
//  3. Cancel running sessions and close their streams
//  4. Wait up to 10 seconds for session goroutines to finish
//
// # Thread Safety
//
// The server is fully concurrent. Shutdown may be called from any goroutine
// and more than once.
package server
