// Vtremote-mock is a mock server for the VTR1 remote video-encoding protocol.
//
// It speaks the full HELLO, CONFIGURE, FRAME, FLUSH exchange with a real
// encoder client but answers every frame with a fixed synthetic packet, so
// clients can be tested without an encoding backend.
//
// Usage:
//
//	vtremote-mock serve [flags]
//	vtremote-mock probe [addr] [flags]
//	vtremote-mock discover [flags]
//
// See 'vtremote-mock <command> --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/vtremote-mock/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vtremote-mock",
	Short: "VTR1 remote encoder mock",
	Long: `A mock server for the VTR1 remote video-encoding protocol.

The server accepts encoder clients over TCP (and optionally WebSocket and QUIC),
authenticates them with an optional token, and replies to every submitted frame
with a small synthetic H.264 packet. It never encodes anything.

Use 'probe' to exercise a running server and 'discover' to find servers
advertised over mDNS.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		for _, line := range version.Details() {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	},
}
