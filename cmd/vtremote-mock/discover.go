package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/vtremote-mock/internal/discovery"
	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/ui"
)

var (
	discoverTimeout  time.Duration
	discoverLogLevel string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find mock servers advertised over mDNS",
	Long: `Browse the local network for ` + discovery.ServiceType + ` services started with
'vtremote-mock serve --advertise' and list their addresses and TXT metadata.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(discoverLogLevel); err != nil {
			return err
		}
		defer logging.Sync()

		instances, err := discovery.Scan(context.Background(), discoverTimeout)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Instances(instances, discoverTimeout).Render())
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVarP(&discoverTimeout, "timeout", "t", discovery.DefaultScanTimeout, "How long to browse")
	discoverCmd.Flags().StringVar(&discoverLogLevel, "log-level", "", "Log level (silent unless set)")
}
