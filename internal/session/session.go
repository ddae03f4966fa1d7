package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/vtremote-mock/internal/config"
	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/protocol"
)

// State is the position of a session in the handshake sequence
type State int

const (
	StateAwaitingHello State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Message directions passed to a Recorder
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Recorder observes every message a session reads or writes
type Recorder interface {
	Record(sessionID string, direction string, t protocol.MessageType, payload []byte)
}

// deadliner is implemented by streams that support read deadlines (net.Conn)
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Response is one message the session wants written to the peer
type Response struct {
	Type    protocol.MessageType
	Payload []byte
}

// Session is the protocol state for one connection. It is owned by a single
// goroutine and never shared.
type Session struct {
	id         string
	cfg        *config.Config
	conn       io.ReadWriter
	recorder   Recorder
	remoteAddr string

	state      State
	negotiated bool
	hello      *protocol.HelloRequest
	configure  *protocol.ConfigureRequest
	stats      Stats
}

// New creates a session in StateAwaitingHello. cfg is read-only; recorder may be nil.
func New(conn io.ReadWriter, cfg *config.Config, recorder Recorder) *Session {
	return &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		conn:     conn,
		recorder: recorder,
		state:    StateAwaitingHello,
	}
}

// SetRemoteAddr sets the peer address used in log lines
func (s *Session) SetRemoteAddr(addr string) {
	s.remoteAddr = addr
}

// ID returns the session identifier used in logs and captures
func (s *Session) ID() string { return s.id }

// State returns the current state
func (s *Session) State() State { return s.state }

// Negotiated reports whether a HELLO was accepted
func (s *Session) Negotiated() bool { return s.negotiated }

// Configuration returns the last accepted CONFIGURE, or nil
func (s *Session) Configuration() *protocol.ConfigureRequest { return s.configure }

// Stats returns a snapshot of the traffic counters
func (s *Session) Stats() Stats { return s.stats }

// Run processes messages until the session closes. It returns nil after a
// FLUSH/DONE exchange and an *Error for every other ending. Failures are
// contained here; the caller only closes the stream.
func (s *Session) Run(ctx context.Context) error {
	s.stats.Started = time.Now()
	defer s.logSummary()

	dl, hasDeadline := s.conn.(deadliner)
	if hasDeadline {
		stop := context.AfterFunc(ctx, func() {
			_ = dl.SetReadDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	for s.state != StateClosed {
		if hasDeadline && s.cfg.IdleTimeout > 0 {
			_ = dl.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		if err := ctx.Err(); err != nil {
			s.state = StateClosed
			return newError(KindTransportClosed, err)
		}

		h, payload, err := s.readNext()
		if err != nil {
			s.state = StateClosed
			return classifyRead(err)
		}

		responses, herr := s.Handle(h, payload)
		for _, r := range responses {
			if err := s.send(r.Type, r.Payload); err != nil {
				s.state = StateClosed
				return newError(KindTransportClosed, err)
			}
		}

		if herr != nil {
			s.report(herr)
			return herr
		}
	}
	return nil
}

// readNext reads one header and, unless the message is about to be rejected
// as a bad first message, its payload.
func (s *Session) readNext() (protocol.Header, []byte, error) {
	var raw [protocol.HeaderSize]byte
	if _, err := io.ReadFull(s.conn, raw[:]); err != nil {
		return protocol.Header{}, nil, fmt.Errorf("%w: %w", protocol.ErrMalformedHeader, err)
	}
	h, err := protocol.DecodeHeader(raw[:])
	if err != nil {
		logging.LogRawBytes("rejected header", raw[:])
		return protocol.Header{}, nil, err
	}
	if s.state == StateAwaitingHello && h.Type != protocol.MsgHello {
		// The payload is left unread; only the header is recorded
		s.stats.BytesIn += protocol.HeaderSize
		if s.recorder != nil {
			s.recorder.Record(s.id, DirectionIn, h.Type, nil)
		}
		logging.LogMessage(s.id, DirectionIn, h.Type.String(), nil)
		return h, nil, nil
	}
	payload, err := protocol.ReadPayload(s.conn, h)
	if err != nil {
		return protocol.Header{}, nil, err
	}
	s.stats.BytesIn += int64(protocol.HeaderSize + len(payload))
	if s.recorder != nil {
		s.recorder.Record(s.id, DirectionIn, h.Type, payload)
	}
	logging.LogMessage(s.id, DirectionIn, h.Type.String(), payload)
	return h, payload, nil
}

// Handle applies one message to the state machine and returns the responses
// to write, in order. A non-nil error means the session is now closed; any
// fixed notice for the failure is already among the responses.
func (s *Session) Handle(h protocol.Header, payload []byte) ([]Response, error) {
	switch s.state {
	case StateAwaitingHello:
		return s.handleAwaitingHello(h, payload)
	case StateReady:
		return s.handleReady(h, payload)
	default:
		return nil, newError(KindSequenceViolation, ErrClosed)
	}
}

func (s *Session) handleAwaitingHello(h protocol.Header, payload []byte) ([]Response, error) {
	if h.Type != protocol.MsgHello {
		s.state = StateClosed
		return s.notice(protocol.ErrCodeBadFirstMessage, ErrBadFirstMessage, KindSequenceViolation)
	}

	hello, err := protocol.DecodeHelloRequest(payload)
	if err != nil {
		return s.unexpected(err)
	}
	s.hello = hello

	status := protocol.StatusOK
	if s.cfg.AuthRequired() && hello.Token != s.cfg.Token {
		status = protocol.StatusAuthFailed
	}
	ack, err := encodeResponse(protocol.MsgHelloAck, protocol.NewHelloAck(status))
	if err != nil {
		return s.unexpected(err)
	}

	if status != protocol.StatusOK {
		s.state = StateClosed
		logging.Info("HELLO auth failed",
			zap.String("session", s.id),
			zap.String("remote_addr", s.remoteAddr),
			zap.String("client", hello.ClientName),
			zap.String("codec", hello.RequestedCodec),
		)
		return []Response{ack}, newError(KindAuthenticationFailure, ErrUnauthorized)
	}

	s.state = StateReady
	s.negotiated = true
	logging.Info("HELLO ok",
		zap.String("session", s.id),
		zap.String("remote_addr", s.remoteAddr),
		zap.String("client", hello.ClientName),
		zap.String("build", hello.ClientBuild),
		zap.String("codec", hello.RequestedCodec),
	)
	return []Response{ack}, nil
}

func (s *Session) handleReady(h protocol.Header, payload []byte) ([]Response, error) {
	switch h.Type {
	case protocol.MsgPing:
		s.stats.Pings++
		logging.Debug("PING", zap.String("session", s.id))
		return []Response{{Type: protocol.MsgPong}}, nil

	case protocol.MsgConfigure:
		req, err := protocol.DecodeConfigureRequest(payload)
		if err != nil {
			return s.unexpected(err)
		}
		s.configure = req
		ack, err := encodeResponse(protocol.MsgConfigureAck, &protocol.ConfigureAck{
			Status:      protocol.StatusOK,
			Extradata:   []byte{},
			PixelFormat: req.PixelFormat,
		})
		if err != nil {
			return s.unexpected(err)
		}
		logging.Info("CONFIGURE ok",
			zap.String("session", s.id),
			zap.Uint32("width", req.Width),
			zap.Uint32("height", req.Height),
			zap.Uint8("pix_fmt", req.PixelFormat),
			zap.Stringer("time_base", req.TimeBase),
			zap.Stringer("frame_rate", req.FrameRate),
			zap.Int("options", len(req.Options)),
		)
		return []Response{ack}, nil

	case protocol.MsgFrame:
		frame, err := protocol.DecodeFrameSubmission(payload)
		if err != nil {
			return s.unexpected(err)
		}
		s.stats.FramesIn++
		pkt, err := encodeResponse(protocol.MsgPacket, SynthesizePacket(frame))
		if err != nil {
			return s.unexpected(err)
		}
		s.stats.PacketsOut++
		return []Response{pkt}, nil

	case protocol.MsgFlush:
		s.state = StateClosed
		logging.Info("DONE",
			zap.String("session", s.id),
			zap.Int("frames", s.stats.FramesIn),
			zap.Int("packets", s.stats.PacketsOut),
		)
		return []Response{{Type: protocol.MsgDone}}, nil

	default:
		s.state = StateClosed
		return s.notice(protocol.ErrCodeUnknownMessage, ErrUnknownMessage, KindSequenceViolation)
	}
}

// notice closes the session with a fixed ErrorNotice
func (s *Session) notice(code uint32, cause error, kind Kind) ([]Response, error) {
	s.state = StateClosed
	r, err := encodeResponse(protocol.MsgError, &protocol.ErrorNotice{Code: code, Message: cause.Error()})
	if err != nil {
		return s.unexpected(err)
	}
	return []Response{r}, newError(kind, cause)
}

// unexpected closes the session; Run reports the failure to the peer
func (s *Session) unexpected(err error) ([]Response, error) {
	s.state = StateClosed
	return nil, newError(KindUnexpectedFailure, err)
}

type encoder interface {
	Encode() ([]byte, error)
}

func encodeResponse(t protocol.MessageType, m encoder) (Response, error) {
	body, err := m.Encode()
	if err != nil {
		return Response{}, err
	}
	return Response{Type: t, Payload: body}, nil
}

// send writes one complete message in a single write
func (s *Session) send(t protocol.MessageType, payload []byte) error {
	if err := protocol.WriteMessage(s.conn, t, payload); err != nil {
		return err
	}
	s.stats.BytesOut += int64(protocol.HeaderSize + len(payload))
	if s.recorder != nil {
		s.recorder.Record(s.id, DirectionOut, t, payload)
	}
	logging.LogMessage(s.id, DirectionOut, t.String(), payload)
	return nil
}

// report logs a terminal failure and, for unexpected failures, makes one
// best-effort attempt to tell the peer. A failure to send is swallowed.
func (s *Session) report(err error) {
	kind, _ := KindOf(err)
	logging.Warn("Session ended with error",
		zap.String("session", s.id),
		zap.String("remote_addr", s.remoteAddr),
		zap.Stringer("kind", kind),
		zap.Error(err),
	)
	if kind != KindUnexpectedFailure {
		return
	}
	var se *Error
	if !errors.As(err, &se) {
		return
	}
	body, encErr := (&protocol.ErrorNotice{Code: protocol.ErrCodeUnexpected, Message: se.Err.Error()}).Encode()
	if encErr != nil {
		return
	}
	if sendErr := s.send(protocol.MsgError, body); sendErr != nil {
		logging.Debug("Could not deliver error notice",
			zap.String("session", s.id),
			zap.Error(sendErr),
		)
	}
}

func (s *Session) logSummary() {
	fields := append([]zap.Field{
		zap.String("session", s.id),
		zap.String("remote_addr", s.remoteAddr),
		zap.Bool("negotiated", s.negotiated),
	}, s.stats.Fields()...)
	if s.hello != nil {
		fields = append(fields, zap.String("client", s.hello.ClientName))
	}
	logging.Info("Session summary", fields...)
}
