package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/vtremote-mock/internal/protocol"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert("vtremote-mock")
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert() error = %v", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	if leaf.Subject.CommonName != "vtremote-mock" {
		t.Errorf("CommonName = %q, want vtremote-mock", leaf.Subject.CommonName)
	}
	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname(localhost) error = %v", err)
	}
	if d := time.Until(leaf.NotAfter); d <= 0 || d > certLifetime {
		t.Errorf("certificate expires in %v, want within %v", d, certLifetime)
	}
}

func TestTLSConfigs(t *testing.T) {
	cert, err := GenerateSelfSignedCert("test")
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert() error = %v", err)
	}
	for name, cfg := range map[string]*tls.Config{
		"server": ServerTLSConfig(cert),
		"client": ClientTLSConfig(),
	} {
		if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != protocol.ALPN {
			t.Errorf("%s NextProtos = %v, want [%s]", name, cfg.NextProtos, protocol.ALPN)
		}
		if cfg.MinVersion != tls.VersionTLS13 {
			t.Errorf("%s MinVersion = %x, want TLS 1.3", name, cfg.MinVersion)
		}
	}
}

// wsServer upgrades every request and hands the wrapped connection to fn
func wsServer(t *testing.T, fn func(*WSConn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != WebSocketPath {
			http.NotFound(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewWSConn(ws)
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestWSConnByteStream(t *testing.T) {
	got := make(chan string, 1)
	addr := wsServer(t, func(c *WSConn) {
		// Two client messages read back as one stream
		buf := make([]byte, 8)
		if _, err := io.ReadFull(c, buf); err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- string(buf)
		_, _ = c.Write([]byte("reply"))
		// Drain until the client closes
		_, _ = io.Copy(io.Discard, c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := DialWebSocket(ctx, addr)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer c.Close()

	for _, chunk := range []string{"abc", "defgh"} {
		if n, err := c.Write([]byte(chunk)); err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	if s := <-got; s != "abcdefgh" {
		t.Errorf("server read %q, want abcdefgh", s)
	}

	reply := make([]byte, 5)
	if _, err := io.ReadFull(c, reply); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(reply) != "reply" {
		t.Errorf("client read %q, want reply", reply)
	}
}

func TestWSConnCloseIsEOF(t *testing.T) {
	readErr := make(chan error, 1)
	addr := wsServer(t, func(c *WSConn) {
		_, err := c.Read(make([]byte, 1))
		readErr <- err
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := DialWebSocket(ctx, addr)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	_ = c.Close()

	select {
	case err := <-readErr:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Read() after close error = %v, want io.EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server Read did not return after client close")
	}
}

func TestWSConnRejectsTextMessages(t *testing.T) {
	readErr := make(chan error, 1)
	addr := wsServer(t, func(c *WSConn) {
		_, err := c.Read(make([]byte, 4))
		readErr <- err
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+addr+WebSocketPath, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer ws.Close()
	if err := ws.WriteMessage(websocket.TextMessage, []byte("VTR1")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	select {
	case err := <-readErr:
		if err == nil {
			t.Error("Read() accepted a text message")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server Read did not return")
	}
}

func TestQUICStreamRoundTrip(t *testing.T) {
	cert, err := GenerateSelfSignedCert("test")
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert() error = %v", err)
	}
	ln, err := ListenQUIC("127.0.0.1:0", cert)
	if err != nil {
		t.Fatalf("ListenQUIC() error = %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	echoed := make(chan error, 1)
	go func() {
		qconn, err := ln.Accept(ctx)
		if err != nil {
			echoed <- err
			return
		}
		stream, err := AcceptSessionStream(ctx, qconn)
		if err != nil {
			echoed <- err
			return
		}
		defer stream.Close()
		buf := make([]byte, 4)
		if _, err := io.ReadFull(stream, buf); err != nil {
			echoed <- err
			return
		}
		_, err = stream.Write(buf)
		echoed <- err
	}()

	c, err := DialQUIC(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("DialQUIC() error = %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("echo = %q, want ping", buf)
	}
	if err := <-echoed; err != nil {
		t.Errorf("server side error = %v", err)
	}
	if alpn := c.ConnectionState().NegotiatedProtocol; alpn != protocol.ALPN {
		t.Errorf("NegotiatedProtocol = %q, want %q", alpn, protocol.ALPN)
	}
}
