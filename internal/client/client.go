package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/protocol"
	"github.com/muurk/vtremote-mock/internal/transport"
)

// Networks accepted by Dial
const (
	NetworkTCP       = "tcp"
	NetworkWebSocket = "ws"
	NetworkQUIC      = "quic"
)

// DefaultTimeout bounds each request/response exchange
const DefaultTimeout = 5 * time.Second

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// UnexpectedReplyError is returned when the server answers with a message
// type other than the one the request calls for
type UnexpectedReplyError struct {
	Want protocol.MessageType
	Got  protocol.MessageType
}

func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("unexpected reply: got %s, want %s", e.Got, e.Want)
}

// Client speaks the encoder side of VTR1 over one stream. It is not safe
// for concurrent use.
type Client struct {
	conn    io.ReadWriteCloser
	Timeout time.Duration
}

// New wraps an established stream
func New(conn io.ReadWriteCloser) *Client {
	return &Client{conn: conn, Timeout: DefaultTimeout}
}

// Dial connects to addr over network ("tcp", "ws" or "quic")
func Dial(ctx context.Context, network, addr string) (*Client, error) {
	var conn io.ReadWriteCloser
	var err error

	switch network {
	case NetworkTCP, "":
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	case NetworkWebSocket:
		conn, err = transport.DialWebSocket(ctx, addr)
	case NetworkQUIC:
		conn, err = transport.DialQUIC(ctx, addr)
	default:
		return nil, fmt.Errorf("unknown network %q (want tcp, ws or quic)", network)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	logging.Debug("Connected", zap.String("network", network), zap.String("addr", addr))
	return New(conn), nil
}

// Close closes the underlying stream
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one message and reads one reply. An ERROR reply is
// returned as *protocol.ErrorNotice.
func (c *Client) roundTrip(t protocol.MessageType, payload []byte, want protocol.MessageType) ([]byte, error) {
	if err := protocol.WriteMessage(c.conn, t, payload); err != nil {
		return nil, err
	}

	if dl, ok := c.conn.(deadliner); ok && c.Timeout > 0 {
		_ = dl.SetReadDeadline(time.Now().Add(c.Timeout))
		defer func() { _ = dl.SetReadDeadline(time.Time{}) }()
	}

	h, body, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", want, err)
	}
	logging.LogMessage("probe", "in", h.Type.String(), body)

	switch h.Type {
	case want:
		return body, nil
	case protocol.MsgError:
		notice, err := protocol.DecodeErrorNotice(body)
		if err != nil {
			return nil, err
		}
		return nil, notice
	default:
		return nil, &UnexpectedReplyError{Want: want, Got: h.Type}
	}
}

// Hello opens the session. A non-zero status is returned in the ack, not
// as an error.
func (c *Client) Hello(req *protocol.HelloRequest) (*protocol.HelloAck, error) {
	body, err := req.Encode()
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(protocol.MsgHello, body, protocol.MsgHelloAck)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeHelloAck(reply)
}

// Configure sends the encoder configuration
func (c *Client) Configure(req *protocol.ConfigureRequest) (*protocol.ConfigureAck, error) {
	body, err := req.Encode()
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(protocol.MsgConfigure, body, protocol.MsgConfigureAck)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeConfigureAck(reply)
}

// Encode submits one frame and returns the packet produced for it
func (c *Client) Encode(frame *protocol.FrameSubmission) (*protocol.Packet, error) {
	body, err := frame.Encode()
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(protocol.MsgFrame, body, protocol.MsgPacket)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePacket(reply)
}

// Ping measures one PING/PONG round trip
func (c *Client) Ping() (time.Duration, error) {
	start := time.Now()
	if _, err := c.roundTrip(protocol.MsgPing, nil, protocol.MsgPong); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Flush ends the session and waits for DONE
func (c *Client) Flush() error {
	_, err := c.roundTrip(protocol.MsgFlush, nil, protocol.MsgDone)
	return err
}

// Send writes a raw message without waiting for a reply
func (c *Client) Send(t protocol.MessageType, payload []byte) error {
	return protocol.WriteMessage(c.conn, t, payload)
}

// Receive reads the next raw message
func (c *Client) Receive() (protocol.Header, []byte, error) {
	return protocol.ReadMessage(c.conn)
}
