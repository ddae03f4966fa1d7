package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/transport"
)

const (
	// WebSocketPath is where the VTR1 byte stream is served over WebSocket
	WebSocketPath = transport.WebSocketPath

	// HealthPath answers plain GETs so load balancers and scripts can probe the listener
	HealthPath = "/healthz"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 64 << 10,
	// Encoders connect from anywhere; there is no browser origin to check
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.HandleFunc(HealthPath, s.handleHealth)
	return mux
}

// handleWebSocket upgrades the request and runs one session on it
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	LogHTTPRequestDetails(r)

	if err := ValidateWebSocketUpgradeRequest(r); err != nil {
		logging.Warn("Invalid WebSocket upgrade request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.claimSession() {
		refuse(r.RemoteAddr, TransportWebSocket)
		http.Error(w, "single session already claimed", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		s.endOnce()
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.serveConn(transport.NewWSConn(ws), r.RemoteAddr, TransportWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "ok sessions=%d\n", s.GetActiveConnections())
}

// ValidateWebSocketUpgradeRequest checks if the incoming HTTP request is a valid WebSocket upgrade
func ValidateWebSocketUpgradeRequest(req *http.Request) error {
	if req.Method != http.MethodGet {
		return fmt.Errorf("invalid method: %s (expected GET)", req.Method)
	}
	if !websocket.IsWebSocketUpgrade(req) {
		return fmt.Errorf("not a websocket upgrade (Upgrade: %q, Connection: %q)",
			req.Header.Get("Upgrade"), req.Header.Get("Connection"))
	}
	if version := req.Header.Get("Sec-WebSocket-Version"); version != "13" {
		return fmt.Errorf("invalid Sec-WebSocket-Version: %s (expected 13)", version)
	}
	return nil
}

// LogHTTPRequestDetails logs the upgrade request at debug level
func LogHTTPRequestDetails(req *http.Request) {
	headers := make(map[string]string, len(req.Header))
	for key, values := range req.Header {
		headers[key] = strings.Join(values, ", ")
	}

	logging.Debug("WebSocket upgrade request",
		zap.String("remote_addr", req.RemoteAddr),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("host", req.Host),
		zap.String("user_agent", req.Header.Get("User-Agent")),
		zap.Any("headers", headers),
	)
}
