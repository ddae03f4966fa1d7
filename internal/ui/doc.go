// Package ui renders the CLI's terminal output with lipgloss.
//
// Commands print a Header before they start and a Result box when they
// finish. ProbeResult, ProbeFailure and Instances build those boxes from
// the probe and discover commands' results:
//
//	fmt.Println(ui.NewHeader("Probe", "vtremote-mock probe 127.0.0.1:5555").Render())
//	result, err := client.Probe(ctx, opts)
//	if err != nil {
//	    fmt.Println(ui.ProbeFailure(opts.Network, opts.Addr, err).Render())
//	    return err
//	}
//	fmt.Println(ui.ProbeResult(result).Render())
//
// Logging stays quiet by default (log level "error" for these commands) so
// the boxes are not interleaved with zap output.
package ui
