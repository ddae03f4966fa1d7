package session

import (
	"errors"
	"fmt"

	"github.com/muurk/vtremote-mock/internal/protocol"
)

// Kind classifies why a session ended abnormally. The connection boundary
// decides the wire response from the kind alone.
type Kind int

const (
	// KindTransportClosed means the stream ended or failed mid-unit; nothing can be sent
	KindTransportClosed Kind = iota + 1
	// KindProtocolMismatch means bad magic or version; nothing is sent
	KindProtocolMismatch
	// KindSequenceViolation means a message was illegal in the current state
	KindSequenceViolation
	// KindAuthenticationFailure means the HELLO token did not match
	KindAuthenticationFailure
	// KindUnexpectedFailure covers any other decode or encode failure
	KindUnexpectedFailure
)

func (k Kind) String() string {
	switch k {
	case KindTransportClosed:
		return "transport_closed"
	case KindProtocolMismatch:
		return "protocol_mismatch"
	case KindSequenceViolation:
		return "sequence_violation"
	case KindAuthenticationFailure:
		return "authentication_failure"
	case KindUnexpectedFailure:
		return "unexpected_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrBadFirstMessage is the cause when the first message is not HELLO
	ErrBadFirstMessage = errors.New("bad first msg")

	// ErrUnknownMessage is the cause for an unrecognized or repeated message type
	ErrUnknownMessage = errors.New("unknown msg")

	// ErrUnauthorized is the cause when the HELLO token is rejected
	ErrUnauthorized = errors.New("unauthorized")

	// ErrClosed is returned when a message is handled after the session closed
	ErrClosed = errors.New("session closed")
)

// Error is a terminal session failure
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, if it is or wraps an *Error
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// classifyRead maps a header/payload read failure onto a Kind
func classifyRead(err error) *Error {
	if errors.Is(err, protocol.ErrProtocolMismatch) {
		return newError(KindProtocolMismatch, err)
	}
	return newError(KindTransportClosed, err)
}
