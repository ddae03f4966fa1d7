package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/vtremote-mock/internal/config"
	"github.com/muurk/vtremote-mock/internal/discovery"
	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/protocol"
	"github.com/muurk/vtremote-mock/internal/session"
	"github.com/muurk/vtremote-mock/internal/transport"
)

// Transport names used in logs
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

// QUIC application error codes sent when closing a connection
const (
	quicNoStream = 1
	quicRefused  = 2
)

// shutdownTimeout bounds how long Shutdown waits for sessions to finish
const shutdownTimeout = 10 * time.Second

// Server accepts VTR1 connections and runs one session per connection
type Server struct {
	config   *config.Config
	recorder session.Recorder

	listener   net.Listener
	httpServer *http.Server
	wsListener net.Listener
	quic       *transport.QUICListener
	advertiser *discovery.Advertiser

	ctx    context.Context
	cancel context.CancelFunc

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]io.Closer

	// onceDone is closed when the first session ends in once mode
	onceDone chan struct{}
	onceMu   sync.Once
	claimed  atomic.Bool

	shutdownOnce sync.Once
}

// New creates a new Server instance. cfg must already be validated.
func New(cfg *config.Config) (*Server, error) {
	var recorder session.Recorder
	if cfg.CaptureDir != "" {
		capture, err := NewCapture(cfg.CaptureDir)
		if err != nil {
			return nil, err
		}
		recorder = capture
		logging.Info("Wire capture enabled", zap.String("dir", cfg.CaptureDir))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:      cfg,
		recorder:    recorder,
		ctx:         ctx,
		cancel:      cancel,
		activeConns: make(map[string]io.Closer),
		onceDone:    make(chan struct{}),
	}, nil
}

// Listen binds every configured listener without accepting yet
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = ln

	if s.config.WebSocketListen != "" {
		wsLn, err := net.Listen("tcp", s.config.WebSocketListen)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("failed to listen on %s: %w", s.config.WebSocketListen, err)
		}
		s.wsListener = wsLn
		s.httpServer = &http.Server{
			Handler:           s.newMux(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return s.ctx },
		}
	}

	if s.config.QUICListen != "" {
		cert, err := transport.GenerateSelfSignedCert(s.config.InstanceName)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("failed to generate certificate: %w", err)
		}
		ql, err := transport.ListenQUIC(s.config.QUICListen, cert)
		if err != nil {
			s.closeListeners()
			return err
		}
		s.quic = ql
	}
	return nil
}

// Addr returns the bound TCP address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the bound WebSocket address, or nil when disabled
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// QUICAddr returns the bound QUIC address, or nil when disabled
func (s *Server) QUICAddr() net.Addr {
	if s.quic == nil {
		return nil
	}
	return s.quic.Addr()
}

// Start listens (if needed), serves every configured transport and blocks
// until a shutdown signal, ctx cancellation, a listener failure, or the
// end of the only session in once mode.
func (s *Server) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	logging.Info("Starting vtremote mock server",
		zap.String("addr", s.listener.Addr().String()),
		zap.Bool("auth", s.config.AuthRequired()),
		zap.Int("max_sessions", s.config.MaxSessions),
		zap.Bool("once", s.config.Once),
		zap.Duration("idle_timeout", s.config.IdleTimeout),
	)

	errChan := make(chan error, 3)

	go func() {
		errChan <- s.acceptConnections()
	}()

	if s.httpServer != nil {
		logging.Info("WebSocket transport listening",
			zap.String("addr", s.wsListener.Addr().String()),
			zap.String("path", WebSocketPath),
		)
		go func() {
			err := s.httpServer.Serve(s.wsListener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
				errChan <- fmt.Errorf("websocket server: %w", err)
			}
		}()
	}

	if s.quic != nil {
		logging.Info("QUIC transport listening",
			zap.String("addr", s.quic.Addr().String()),
			zap.String("alpn", protocol.ALPN),
		)
		go func() {
			errChan <- s.acceptQUIC()
		}()
	}

	if s.config.Advertise {
		adv, err := discovery.Advertise(s.config, tcpPort(s.listener.Addr()))
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.advertiser = adv
		}
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logging.Info("Context cancelled, stopping server...")
	case <-s.onceDone:
		logging.Info("Single session finished, stopping server...")
	case err := <-errChan:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return err
		}
		// The TCP loop only returns nil when its listener is closed
		// or after the session in once mode
		if s.config.Once {
			<-s.onceDone
		}
	}

	return s.Shutdown(context.Background())
}

// acceptConnections accepts TCP connections until the listener closes.
// In once mode it serves exactly one connection on this goroutine.
func (s *Server) acceptConnections() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		if !s.claimSession() {
			refuse(conn.RemoteAddr().String(), TransportTCP)
			_ = conn.Close()
			return nil
		}

		s.wg.Add(1)
		if s.config.Once {
			s.serveConn(conn, conn.RemoteAddr().String(), TransportTCP)
			s.wg.Done()
			return nil
		}

		go func() {
			defer s.wg.Done()
			s.serveConn(conn, conn.RemoteAddr().String(), TransportTCP)
		}()
	}
}

// acceptQUIC accepts QUIC connections until the listener closes
func (s *Server) acceptQUIC() error {
	for {
		qconn, err := s.quic.Accept(s.ctx)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !s.claimSession() {
			refuse(qconn.RemoteAddr().String(), TransportQUIC)
			_ = qconn.CloseWithError(quicRefused, "single session already claimed")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			stream, err := transport.AcceptSessionStream(s.ctx, qconn)
			if err != nil {
				logging.Warn("QUIC connection without session stream",
					zap.String("remote_addr", qconn.RemoteAddr().String()),
					zap.Error(err),
				)
				_ = qconn.CloseWithError(quicNoStream, "no stream")
				s.endOnce()
				return
			}
			s.serveConn(stream, qconn.RemoteAddr().String(), TransportQUIC)
		}()
	}
}

// serveConn runs one session on conn and closes it afterwards. It never
// returns an error; session failures end here. Callers hold a wg slot.
func (s *Server) serveConn(conn io.ReadWriteCloser, remoteAddr, transportName string) {
	sess := session.New(conn, s.config, s.recorder)
	sess.SetRemoteAddr(remoteAddr)
	key := transportName + "/" + sess.ID()

	// Track active connection
	s.mu.Lock()
	s.activeConns[key] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, key)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, transportName, "connection_closed")
		s.endOnce()
	}()

	logging.LogConnection(remoteAddr, transportName, "connection_accepted")

	if err := sess.Run(s.ctx); err != nil {
		kind, _ := session.KindOf(err)
		if kind == session.KindTransportClosed {
			logging.Debug("Session ended by transport",
				zap.String("session", sess.ID()),
				zap.Error(err),
			)
		}
	}
}

// claimSession reports whether a new connection may run a session. In once
// mode only the first caller across all transports wins, and the TCP and
// WebSocket listeners are closed on its behalf. The QUIC listener stays open
// because closing it tears down the connections it accepted.
func (s *Server) claimSession() bool {
	if !s.config.Once {
		return true
	}
	if !s.claimed.CompareAndSwap(false, true) {
		return false
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.wsListener != nil {
		_ = s.wsListener.Close()
	}
	return true
}

// endOnce releases Start after the claimed session in once mode
func (s *Server) endOnce() {
	if s.config.Once {
		s.onceMu.Do(func() { close(s.onceDone) })
	}
}

func refuse(remoteAddr, transportName string) {
	logging.LogConnection(remoteAddr, transportName, "connection_refused")
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		logging.Info("Shutting down server...")

		if s.advertiser != nil {
			s.advertiser.Shutdown()
		}

		// Stop accepting new connections and unblock running sessions
		s.closeListeners()
		s.cancel()

		if s.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			_ = s.httpServer.Shutdown(shutdownCtx)
			cancel()
		}

		// Close all active connections
		s.mu.Lock()
		for key, conn := range s.activeConns {
			logging.Info("Closing active connection", zap.String("conn", key))
			_ = conn.Close()
		}
		s.mu.Unlock()

		// Wait for all goroutines to finish with timeout
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logging.Info("All connections closed gracefully")
		case <-ctx.Done():
			logging.Warn("Shutdown timeout, forcing close")
		case <-time.After(shutdownTimeout):
			logging.Warn("Shutdown timeout after 10 seconds, forcing close")
		}

		logging.Sync()
	})
	return nil
}

func (s *Server) closeListeners() {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	if s.wsListener != nil {
		_ = s.wsListener.Close()
	}
	if s.quic != nil {
		_ = s.quic.Close()
	}
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func tcpPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
