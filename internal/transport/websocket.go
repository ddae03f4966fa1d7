package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// WebSocketPath is where the VTR1 byte stream is served over WebSocket
	WebSocketPath = "/vtr"

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed for the close handshake
	closeWait = time.Second
)

// WSConn presents a WebSocket connection as the byte stream a session
// expects. Each Write becomes one binary message, so a VTR1 unit is never
// split across messages. Reads concatenate binary messages; message
// boundaries carry no meaning.
type WSConn struct {
	ws *websocket.Conn

	// current is the unread remainder of the message being consumed
	current io.Reader

	writeMu sync.Mutex
}

// NewWSConn wraps an established WebSocket connection
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// Read implements io.Reader over successive binary messages
func (c *WSConn) Read(p []byte) (int, error) {
	for {
		if c.current == nil {
			msgType, r, err := c.ws.NextReader()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					return 0, io.EOF
				}
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				return 0, fmt.Errorf("unexpected websocket message type %d", msgType)
			}
			c.current = r
		}

		n, err := c.current.Read(p)
		if errors.Is(err, io.EOF) {
			c.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write sends p as a single binary message
func (c *WSConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return 0, err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetReadDeadline lets sessions apply idle timeouts and cancellation
func (c *WSConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// Close performs a best-effort close handshake and closes the socket
func (c *WSConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// DialWebSocket connects to a mock's WebSocket listener at host:port
func DialWebSocket(ctx context.Context, addr string) (*WSConn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: WebSocketPath}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %s: %w", u.String(), resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", u.String(), err)
	}
	return NewWSConn(ws), nil
}

// RemoteAddr returns the peer address
func (c *WSConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
