package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/muurk/vtremote-mock/internal/server"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <capture.jsonl>",
	Short: "Decode a session capture file",
	Long: `Print one line per message recorded by 'serve --capture-dir', with each
payload decoded. Payloads longer than the capture limit are reported as truncated.`,
	Example: `  vtremote-mock inspect captures/session-0b7c5e0e-6f4a-4d55-9a1e-3c2b1d0f9e8a.jsonl`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		records, err := server.ReadCapture(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for i, rec := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
				i+1, rec.Timestamp.Format("15:04:05.000"), rec.Direction, rec.Type, rec.Length, rec.Describe())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
