package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	quicIdleTimeout = 30 * time.Second

	// serverLinger is how long the server waits for the peer to close the
	// connection after its last write, so trailing stream data is delivered
	serverLinger = 2 * time.Second
)

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:    quicIdleTimeout,
		InitialPacketSize: 1200,
	}
}

// QUICListener accepts QUIC connections that each carry one session on
// their first bidirectional stream
type QUICListener struct {
	tr *quic.Transport
	ln *quic.Listener
}

// ListenQUIC binds a UDP socket on addr and starts a QUIC listener using cert
func ListenQUIC(addr string, cert tls.Certificate) (*QUICListener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}

	tr := &quic.Transport{Conn: udpConn}
	ln, err := tr.Listen(ServerTLSConfig(cert), quicConfig())
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("QUIC listen: %w", err)
	}

	return &QUICListener{tr: tr, ln: ln}, nil
}

// Addr returns the bound UDP address
func (l *QUICListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the next QUIC connection
func (l *QUICListener) Accept(ctx context.Context) (*quic.Conn, error) {
	qconn, err := l.ln.Accept(ctx)
	if errors.Is(err, quic.ErrServerClosed) {
		return nil, net.ErrClosed
	}
	if err != nil {
		return nil, fmt.Errorf("accept QUIC connection: %w", err)
	}
	return qconn, nil
}

// Close shuts down the listener and underlying transport
func (l *QUICListener) Close() error {
	l.ln.Close()
	return l.tr.Close()
}

// AcceptSessionStream waits for the peer's first bidirectional stream. The
// stream only appears once the peer has written to it.
func AcceptSessionStream(ctx context.Context, qconn *quic.Conn) (*QUICStream, error) {
	stream, err := qconn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept session stream: %w", err)
	}
	return &QUICStream{Stream: stream, conn: qconn, linger: serverLinger}, nil
}

// QUICStream is one session's byte stream. It embeds the quic stream for
// Read, Write and SetReadDeadline.
type QUICStream struct {
	*quic.Stream
	conn   *quic.Conn
	tr     *quic.Transport
	linger time.Duration
}

// RemoteAddr returns the peer's UDP address
func (s *QUICStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// ConnectionState returns the TLS state of the underlying connection
func (s *QUICStream) ConnectionState() tls.ConnectionState {
	return s.conn.ConnectionState().TLS
}

// Close finishes the stream, gives the peer time to read the tail, then
// closes the connection
func (s *QUICStream) Close() error {
	_ = s.Stream.Close()
	if s.linger > 0 {
		select {
		case <-s.conn.Context().Done():
		case <-time.After(s.linger):
		}
	}
	err := s.conn.CloseWithError(0, "")
	if s.tr != nil {
		_ = s.tr.Close()
	}
	return err
}

// DialQUIC connects to a mock's QUIC listener and opens the session stream
func DialQUIC(ctx context.Context, addr string) (*QUICStream, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}

	tr := &quic.Transport{Conn: udpConn}
	qconn, err := tr.Dial(ctx, udpAddr, ClientTLSConfig(), quicConfig())
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("QUIC dial: %w", err)
	}

	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		qconn.CloseWithError(1, "open stream failed")
		tr.Close()
		return nil, fmt.Errorf("open session stream: %w", err)
	}

	return &QUICStream{Stream: stream, conn: qconn, tr: tr}, nil
}
