// Package session implements the per-connection VTR1 state machine.
//
// A Session owns one bidirectional byte stream. It reads messages with the
// protocol package, applies them to its state and writes responses back on
// the same stream, one message per write.
//
// # States
//
//	AwaitingHello --HELLO (token ok)--------> Ready        HELLO_ACK status 0
//	AwaitingHello --HELLO (token rejected)--> Closed       HELLO_ACK status 2
//	AwaitingHello --anything else-----------> Closed       ERROR 3 "bad first msg"
//	Ready         --PING--------------------> Ready        PONG
//	Ready         --CONFIGURE---------------> Ready        CONFIGURE_ACK
//	Ready         --FRAME-------------------> Ready        PACKET
//	Ready         --FLUSH-------------------> Closed       DONE
//	Ready         --anything else-----------> Closed       ERROR 7 "unknown msg"
//
// The payload of a rejected first message is never read. Bad magic or
// version and a closed stream end the session without any response. Any
// other failure is reported once with ERROR 5 and the failure text.
//
// # Usage
//
//	s := session.New(conn, cfg, recorder)
//	if err := s.Run(ctx); err != nil {
//	    kind, _ := session.KindOf(err)
//	    ...
//	}
//
// Handle can be driven directly for tests and for transports that deliver
// whole messages.
//
// # Thread Safety
//
// A Session is not safe for concurrent use. Each connection runs its own
// Session on its own goroutine; sessions share only the read-only Config and
// the Recorder, which must be safe for concurrent use.
package session
