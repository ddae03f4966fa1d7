package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/vtremote-mock/internal/config"
	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/protocol"
)

const (
	// ServiceType is the mDNS service type advertised by the mock
	ServiceType = "_vtremote._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 3 * time.Second
)

// TXT record keys
const (
	txtVersion     = "version"
	txtCodecs      = "codecs"
	txtAuth        = "auth"
	txtMaxSessions = "max_sessions"
)

// TXTRecords builds the TXT record advertised for cfg
func TXTRecords(cfg *config.Config) []string {
	auth := "0"
	if cfg.AuthRequired() {
		auth = "1"
	}
	return []string{
		txtVersion + "=" + strconv.Itoa(int(protocol.Version)),
		txtCodecs + "=" + strings.Join(protocol.SupportedCodecs, ","),
		txtAuth + "=" + auth,
		txtMaxSessions + "=" + strconv.Itoa(cfg.MaxSessions),
	}
}

// Advertiser keeps an mDNS registration alive until Shutdown
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the mock under cfg.InstanceName on port
func Advertise(cfg *config.Config, port int) (*Advertiser, error) {
	text := TXTRecords(cfg)
	srv, err := zeroconf.Register(cfg.InstanceName, ServiceType, ServiceDomain, port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising over mDNS",
		zap.String("instance", cfg.InstanceName),
		zap.String("service", ServiceType),
		zap.Int("port", port),
		zap.Strings("txt", text),
	)
	return &Advertiser{server: srv}, nil
}

// Shutdown withdraws the advertisement
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
}

// Scanner handles mDNS discovery of running mocks
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for mocks until the timeout or ctx ends
func (s *Scanner) Scan(ctx context.Context) ([]*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	var mu sync.Mutex
	instances := make([]*Instance, 0)
	seen := make(map[string]bool)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			inst := parseServiceEntry(entry)
			if inst == nil {
				continue
			}
			mu.Lock()
			if !seen[inst.Name] {
				seen[inst.Name] = true
				instances = append(instances, inst)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Instance(nil), instances...), nil
}

// parseServiceEntry converts a zeroconf service entry to an Instance.
// Returns nil if the entry has no address or does not speak VTR1.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Instance {
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		// TXT records are in "key=value" format
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	if metadata[txtVersion] != strconv.Itoa(int(protocol.Version)) {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	return &Instance{
		Name:         entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Scan is a convenience function to browse with a custom timeout
func Scan(ctx context.Context, timeout time.Duration) ([]*Instance, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Scan(ctx)
}
