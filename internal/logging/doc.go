// Package logging provides structured logging for the vtremote mock server.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the server and the probe client.
//
// # Log Levels
//
//   - Debug: Per-message hex dumps, PING/PONG, capture details
//   - Info: Connections, HELLO/CONFIGURE results, session summaries
//   - Warn: Session errors reported to the peer, dropped connections
//   - Error: Listener failures, startup errors
//
// # Specialized Logging
//
//	logging.LogConnection(remoteAddr, "tcp", "connection_accepted")
//	logging.LogMessage(sessionID, "in", "FRAME", payload)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// With an empty level the VTREMOTE_LOG_LEVEL environment variable is
// consulted; if that is also empty the logger is a no-op.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// must be called before any connection is accepted.
package logging
