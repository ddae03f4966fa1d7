package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/muurk/vtremote-mock/internal/client"
	"github.com/muurk/vtremote-mock/internal/config"
	"github.com/muurk/vtremote-mock/internal/protocol"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	return cfg
}

// startServer binds and serves cfg until the test ends
func startServer(t *testing.T, cfg *config.Config) (*Server, <-chan error) {
	t.Helper()
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- srv.Start(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(15 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv, done
}

func probe(t *testing.T, network, addr, token string) *client.ProbeResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := client.DefaultProbeOptions(addr)
	opts.Network = network
	opts.Token = token
	opts.Frames = 4
	opts.KeyframeInterval = 2

	result, err := client.Probe(ctx, opts)
	if err != nil {
		t.Fatalf("Probe(%s) error = %v", network, err)
	}
	return result
}

func TestServeTCP(t *testing.T) {
	srv, _ := startServer(t, testConfig())

	result := probe(t, client.NetworkTCP, srv.Addr().String(), "")
	if !result.Accepted() {
		t.Fatalf("HELLO status = %d, want 0", result.Status)
	}
	if result.Packets != 4 {
		t.Errorf("Packets = %d, want 4", result.Packets)
	}
	if result.Keyframes != 2 {
		t.Errorf("Keyframes = %d, want 2", result.Keyframes)
	}
	if strings.Join(result.Codecs, ",") != "h264,hevc" {
		t.Errorf("Codecs = %v, want [h264 hevc]", result.Codecs)
	}
}

func TestServeTCPConcurrentSessions(t *testing.T) {
	srv, _ := startServer(t, testConfig())
	addr := srv.Addr().String()

	const n = 4
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, err := client.Probe(ctx, client.DefaultProbeOptions(addr))
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent Probe() error = %v", err)
		}
	}
}

func TestServeTCPAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Token = "s3cret"
	srv, _ := startServer(t, cfg)
	addr := srv.Addr().String()

	if result := probe(t, client.NetworkTCP, addr, "s3cret"); !result.Accepted() {
		t.Errorf("matching token: status = %d, want 0", result.Status)
	}
	result := probe(t, client.NetworkTCP, addr, "wrong")
	if result.Status != protocol.StatusAuthFailed {
		t.Errorf("wrong token: status = %d, want %d", result.Status, protocol.StatusAuthFailed)
	}
	if result.Packets != 0 {
		t.Errorf("wrong token: Packets = %d, want 0", result.Packets)
	}
}

func TestServeBadMagicClosesSilently(t *testing.T) {
	srv, _ := startServer(t, testConfig())

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Exactly one header's worth of bytes, so nothing is left unread
	if _, err := conn.Write([]byte("GET / HTTP/1")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(data) != 0 {
		t.Errorf("server replied % x to a bad magic, want nothing", data)
	}
}

func TestServeOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Once = true
	srv, done := startServer(t, cfg)
	addr := srv.Addr().String()

	probe(t, client.NetworkTCP, addr, "")

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server kept running after the single session")
	}

	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("server still accepting after once mode finished")
	}
}

func TestServeOnceAcrossTransports(t *testing.T) {
	tests := []struct {
		name  string
		first string
	}{
		{"tcp first", client.NetworkTCP},
		{"websocket first", client.NetworkWebSocket},
		{"quic first", client.NetworkQUIC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Once = true
			cfg.WebSocketListen = "127.0.0.1:0"
			cfg.QUICListen = "127.0.0.1:0"
			srv, done := startServer(t, cfg)
			addrs := map[string]string{
				client.NetworkTCP:       srv.Addr().String(),
				client.NetworkWebSocket: srv.WebSocketAddr().String(),
				client.NetworkQUIC:      srv.QUICAddr().String(),
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			first, err := client.Dial(ctx, tt.first, addrs[tt.first])
			if err != nil {
				t.Fatalf("Dial(%s) error = %v", tt.first, err)
			}
			defer first.Close()
			if ack, err := first.Hello(&protocol.HelloRequest{RequestedCodec: "h264"}); err != nil || ack.Status != protocol.StatusOK {
				t.Fatalf("first Hello() = %+v, %v, want accepted", ack, err)
			}

			for _, network := range []string{client.NetworkTCP, client.NetworkWebSocket, client.NetworkQUIC} {
				if ok := helloAccepted(ctx, network, addrs[network]); ok {
					t.Errorf("second session over %s was accepted while the first was running", network)
				}
			}

			if _, err := first.Encode(&protocol.FrameSubmission{
				PTS:    0,
				Flags:  protocol.FlagKeyframe,
				Planes: []protocol.Plane{{Stride: 4, Height: 1, Data: []byte{1, 2, 3, 4}}},
			}); err != nil {
				t.Errorf("first Encode() error = %v, want the session to survive refusals", err)
			}
			if err := first.Flush(); err != nil {
				t.Errorf("first Flush() error = %v", err)
			}

			select {
			case err := <-done:
				if err != nil {
					t.Errorf("Start() error = %v", err)
				}
			case <-time.After(10 * time.Second):
				t.Fatal("server kept running after the single session")
			}
		})
	}
}

// helloAccepted reports whether a fresh connection gets an accepting HELLO_ACK
func helloAccepted(ctx context.Context, network, addr string) bool {
	c, err := client.Dial(ctx, network, addr)
	if err != nil {
		return false
	}
	defer c.Close()
	c.Timeout = 2 * time.Second
	ack, err := c.Hello(&protocol.HelloRequest{RequestedCodec: "h264"})
	return err == nil && ack.Status == protocol.StatusOK
}

func TestServeWebSocket(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocketListen = "127.0.0.1:0"
	srv, _ := startServer(t, cfg)

	result := probe(t, client.NetworkWebSocket, srv.WebSocketAddr().String(), "")
	if !result.Accepted() || result.Packets != 4 {
		t.Errorf("websocket probe = %+v, want accepted with 4 packets", result)
	}

	resp, err := http.Get("http://" + srv.WebSocketAddr().String() + HealthPath)
	if err != nil {
		t.Fatalf("GET %s error = %v", HealthPath, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "ok") {
		t.Errorf("health = %d %q, want 200 ok", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + srv.WebSocketAddr().String() + WebSocketPath)
	if err != nil {
		t.Fatalf("GET %s error = %v", WebSocketPath, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("plain GET %s = %d, want 400", WebSocketPath, resp.StatusCode)
	}
}

func TestServeQUIC(t *testing.T) {
	cfg := testConfig()
	cfg.QUICListen = "127.0.0.1:0"
	srv, _ := startServer(t, cfg)

	result := probe(t, client.NetworkQUIC, srv.QUICAddr().String(), "")
	if !result.Accepted() || result.Packets != 4 {
		t.Errorf("quic probe = %+v, want accepted with 4 packets", result)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := srv.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() #%d error = %v", i+1, err)
		}
	}
	if n := srv.GetActiveConnections(); n != 0 {
		t.Errorf("GetActiveConnections() = %d, want 0", n)
	}
}

func TestValidateWebSocketUpgradeRequest(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		headers map[string]string
		wantErr bool
	}{
		{
			name:   "valid upgrade",
			method: http.MethodGet,
			headers: map[string]string{
				"Upgrade": "websocket", "Connection": "Upgrade", "Sec-WebSocket-Version": "13",
			},
		},
		{
			name:    "plain GET",
			method:  http.MethodGet,
			wantErr: true,
		},
		{
			name:   "POST",
			method: http.MethodPost,
			headers: map[string]string{
				"Upgrade": "websocket", "Connection": "Upgrade", "Sec-WebSocket-Version": "13",
			},
			wantErr: true,
		},
		{
			name:   "old version",
			method: http.MethodGet,
			headers: map[string]string{
				"Upgrade": "websocket", "Connection": "keep-alive, Upgrade", "Sec-WebSocket-Version": "8",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, "http://localhost"+WebSocketPath, nil)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			err = ValidateWebSocketUpgradeRequest(req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWebSocketUpgradeRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
