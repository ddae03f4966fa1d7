package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/vtremote-mock/internal/client"
	"github.com/muurk/vtremote-mock/internal/discovery"
	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/ui"
)

var (
	probeOpts     = client.DefaultProbeOptions("")
	probeTimeout  time.Duration
	probeLogLevel string
)

var probeCmd = &cobra.Command{
	Use:   "probe [addr]",
	Short: "Run a synthetic encode session against a server",
	Long: `Connect to a VTR1 server and run HELLO, CONFIGURE, a few FRAMEs, PING and FLUSH.

Without an address, the first server found over mDNS is probed. The address
is host:port for tcp and quic, and host:port of the HTTP listener for ws.`,
	Example: `  # Probe the default local server
  vtremote-mock probe 127.0.0.1:5555

  # Probe over WebSocket with a token
  vtremote-mock probe 127.0.0.1:8080 --network ws --token s3cret

  # Probe whichever server is advertised on the network
  vtremote-mock probe`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	f := probeCmd.Flags()
	f.StringVarP(&probeOpts.Network, "network", "n", client.NetworkTCP, "Transport: tcp, ws or quic")
	f.StringVar(&probeOpts.Token, "token", "", "HELLO token")
	f.StringVar(&probeOpts.Codec, "codec", probeOpts.Codec, "Requested codec")
	f.Uint32Var(&probeOpts.Width, "width", probeOpts.Width, "Frame width")
	f.Uint32Var(&probeOpts.Height, "height", probeOpts.Height, "Frame height")
	f.Uint8Var(&probeOpts.PixelFormat, "pixel-format", probeOpts.PixelFormat, "Pixel format code")
	f.IntVar(&probeOpts.Frames, "frames", probeOpts.Frames, "Number of frames to submit")
	f.IntVar(&probeOpts.KeyframeInterval, "keyframe-interval", 0, "Force a keyframe every N frames (0: first frame only)")
	f.DurationVar(&probeTimeout, "timeout", 10*time.Second, "Overall timeout, including mDNS lookup")
	f.StringVar(&probeLogLevel, "log-level", "", "Log level (silent unless set)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(probeLogLevel); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	opts := probeOpts
	if len(args) == 1 {
		opts.Addr = args[0]
	} else {
		inst, err := firstInstance(ctx)
		if err != nil {
			return err
		}
		opts.Addr = inst.Addr()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.NewHeader("Probe", "vtremote-mock probe "+opts.Addr,
		ui.Detail{Key: "Transport", Value: opts.Network},
		ui.Detail{Key: "Frames", Value: fmt.Sprintf("%d @ %dx%d", opts.Frames, opts.Width, opts.Height)},
	).Render())

	result, err := client.Probe(ctx, opts)
	if err != nil {
		fmt.Fprintln(out, ui.ProbeFailure(opts.Network, opts.Addr, err).Render())
		return err
	}
	fmt.Fprintln(out, ui.ProbeResult(result).Render())
	if !result.Accepted() {
		return fmt.Errorf("HELLO rejected with status %d", result.Status)
	}
	return nil
}

// firstInstance browses mDNS and returns the first server found
func firstInstance(ctx context.Context) (*discovery.Instance, error) {
	instances, err := discovery.Scan(ctx, discovery.DefaultScanTimeout)
	if err != nil {
		return nil, fmt.Errorf("mDNS lookup failed: %w", err)
	}
	if len(instances) == 0 {
		return nil, errors.New("no address given and no server found over mDNS")
	}
	return instances[0], nil
}
