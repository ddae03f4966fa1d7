package client

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/vtremote-mock/internal/protocol"
	"github.com/muurk/vtremote-mock/internal/version"
)

// ProbeOptions describes the synthetic encode run performed by Probe
type ProbeOptions struct {
	Network     string
	Addr        string
	Token       string
	Codec       string
	Width       uint32
	Height      uint32
	PixelFormat uint8
	Frames      int
	// KeyframeInterval forces a keyframe every N frames (0 only on the first)
	KeyframeInterval int
}

// DefaultProbeOptions returns a small 1080p run against addr over TCP
func DefaultProbeOptions(addr string) ProbeOptions {
	return ProbeOptions{
		Network:     NetworkTCP,
		Addr:        addr,
		Codec:       "h264",
		Width:       1920,
		Height:      1080,
		PixelFormat: 1,
		Frames:      3,
	}
}

// ProbeResult summarizes a completed probe
type ProbeResult struct {
	Network       string
	Addr          string
	Status        uint8
	Codecs        []string
	NALLengthSize uint16
	PixelFormat   uint8
	Packets       int
	Keyframes     int
	PacketBytes   int
	PingRTT       time.Duration
	Elapsed       time.Duration
}

// Accepted reports whether the HELLO was accepted
func (r *ProbeResult) Accepted() bool {
	return r.Status == protocol.StatusOK
}

// Probe runs HELLO, CONFIGURE, FRAME x N, PING and FLUSH against a server.
// A rejected HELLO is not an error: the result carries the status and the
// run stops there.
func Probe(ctx context.Context, opts ProbeOptions) (*ProbeResult, error) {
	start := time.Now()

	c, err := Dial(ctx, opts.Network, opts.Addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	result := &ProbeResult{Network: opts.Network, Addr: opts.Addr}

	ack, err := c.Hello(&protocol.HelloRequest{
		Token:          opts.Token,
		RequestedCodec: opts.Codec,
		ClientName:     "vtremote-probe",
		ClientBuild:    version.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("HELLO: %w", err)
	}
	result.Status = ack.Status
	result.Codecs = ack.SupportedCodecs
	result.NALLengthSize = ack.NALLengthSize
	if !result.Accepted() {
		result.Elapsed = time.Since(start)
		return result, nil
	}

	cfgAck, err := c.Configure(&protocol.ConfigureRequest{
		Width:       opts.Width,
		Height:      opts.Height,
		PixelFormat: opts.PixelFormat,
		TimeBase:    protocol.Rational{Num: 1, Den: 30},
		FrameRate:   protocol.Rational{Num: 30, Den: 1},
		Options:     []protocol.Option{{Key: "codec", Value: opts.Codec}},
	})
	if err != nil {
		return nil, fmt.Errorf("CONFIGURE: %w", err)
	}
	result.PixelFormat = cfgAck.PixelFormat

	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var flags uint32
		if i == 0 || (opts.KeyframeInterval > 0 && i%opts.KeyframeInterval == 0) {
			flags = protocol.FlagKeyframe
		}
		pkt, err := c.Encode(&protocol.FrameSubmission{
			PTS:      int64(i),
			Duration: 1,
			Flags:    flags,
			Planes:   syntheticPlanes(opts.Width),
		})
		if err != nil {
			return nil, fmt.Errorf("FRAME %d: %w", i, err)
		}
		result.Packets++
		result.PacketBytes += len(pkt.Data)
		if pkt.Keyframe() {
			result.Keyframes++
		}
	}

	if result.PingRTT, err = c.Ping(); err != nil {
		return nil, fmt.Errorf("PING: %w", err)
	}
	if err := c.Flush(); err != nil {
		return nil, fmt.Errorf("FLUSH: %w", err)
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// syntheticPlanes returns one tiny luma row; the mock never inspects plane
// content, only that the declared bytes are consumed
func syntheticPlanes(width uint32) []protocol.Plane {
	stride := width
	if stride > 64 {
		stride = 64
	}
	return []protocol.Plane{{Stride: stride, Height: 1, Data: make([]byte, stride)}}
}
