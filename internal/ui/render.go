package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/vtremote-mock/internal/client"
	"github.com/muurk/vtremote-mock/internal/discovery"
	"github.com/muurk/vtremote-mock/internal/protocol"
)

// ProbeResult builds the result box for a completed probe
func ProbeResult(r *client.ProbeResult) *Result {
	if !r.Accepted() {
		res := NewWarningResult("HELLO rejected")
		res.AddDetail("Transport", r.Network).
			AddDetail("Address", r.Addr).
			AddDetail("Status", statusText(r.Status))
		if r.Status == protocol.StatusAuthFailed {
			res.Troubleshooting = []string{
				"Pass the server's token with --token",
				"Check the token configured on the server (vtremote-mock config show)",
			}
		}
		return res
	}

	res := NewSuccessResult("Session completed")
	res.AddDetail("Transport", r.Network).
		AddDetail("Address", r.Addr).
		AddDetail("Codecs", strings.Join(r.Codecs, ", ")).
		AddDetail("NAL length size", strconv.Itoa(int(r.NALLengthSize))).
		AddDetail("Pixel format", strconv.Itoa(int(r.PixelFormat))).
		AddDetail("Packets", fmt.Sprintf("%d (%d keyframes, %d bytes)", r.Packets, r.Keyframes, r.PacketBytes)).
		AddDetail("PING RTT", r.PingRTT.Round(time.Microsecond).String()).
		AddDetail("Elapsed", r.Elapsed.Round(time.Millisecond).String())
	return res
}

// ProbeFailure builds the result box for a probe that could not complete
func ProbeFailure(network, addr string, err error) *Result {
	tips := []string{
		"Check the server is running: vtremote-mock serve",
		fmt.Sprintf("Verify %s is reachable over %s", addr, network),
	}
	switch network {
	case client.NetworkWebSocket:
		tips = append(tips, "The server only accepts WebSocket when started with --ws-listen")
	case client.NetworkQUIC:
		tips = append(tips, "The server only accepts QUIC when started with --quic-listen")
	}
	return NewFailureResult("Probe failed", err, tips)
}

// Instances builds the result box listing discovered servers
func Instances(instances []*discovery.Instance, timeout time.Duration) *Result {
	if len(instances) == 0 {
		res := NewWarningResult("No servers found")
		res.AddDetail("Service", discovery.ServiceType).
			AddDetail("Scanned for", timeout.String())
		res.Troubleshooting = []string{
			"Start a server with --advertise",
			"mDNS does not cross subnets or most VPNs",
		}
		return res
	}

	res := NewSuccessResult(fmt.Sprintf("Found %d server(s)", len(instances)))
	for _, inst := range instances {
		auth := "open"
		if inst.AuthRequired() {
			auth = "token"
		}
		res.AddDetail(inst.Name, fmt.Sprintf("%s  codecs=%s  auth=%s  max_sessions=%d",
			inst.Addr(), strings.Join(inst.Codecs(), ","), auth, inst.MaxSessions()))
	}
	return res
}

func statusText(status uint8) string {
	switch status {
	case protocol.StatusOK:
		return "0 (ok)"
	case protocol.StatusAuthFailed:
		return "2 (authentication failed)"
	default:
		return strconv.Itoa(int(status))
	}
}
