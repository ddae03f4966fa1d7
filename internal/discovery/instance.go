package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Instance is a vtremote mock found on the local network
type Instance struct {
	// Name is the mDNS instance name (e.g., "vtremote-mock")
	Name string

	// Hostname is the mDNS hostname (e.g., "studio.local.")
	Hostname string

	// IP is the first advertised address, IPv4 preferred
	IP string

	// Port is the VTR1 TCP port
	Port int

	// Metadata contains the raw TXT record data
	// Fields: "version=1", "codecs=h264,hevc", "auth=0", "max_sessions=4"
	Metadata map[string]string

	// DiscoveredAt is when the instance was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the instance
func (i *Instance) String() string {
	return fmt.Sprintf("vtremote %s (%s) at %s", i.Name, i.Hostname, i.Addr())
}

// Addr returns the host:port to dial
func (i *Instance) Addr() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}

// Codecs returns the advertised codec list
func (i *Instance) Codecs() []string {
	v := i.GetMetadata(txtCodecs)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// AuthRequired reports whether the instance expects a HELLO token
func (i *Instance) AuthRequired() bool {
	return i.GetMetadata(txtAuth) == "1"
}

// MaxSessions returns the advertised session limit, or 0 if absent
func (i *Instance) MaxSessions() int {
	n, err := strconv.Atoi(i.GetMetadata(txtMaxSessions))
	if err != nil {
		return 0
	}
	return n
}
