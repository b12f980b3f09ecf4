// Package ui provides terminal output for the devfinder CLI.
//
// Components are rendered with Lipgloss and sized to the terminal through
// golang.org/x/term:
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, warning and failure boxes
//   - Progress: discovery phases as a step list with a subnet sweep bar
//   - Device cards: ranked descriptors with URL, fallback and path quality
//
// ConsoleSink implements discovery.EventSink and prints one line per scan
// event, which is the default output of `devfinder scan`. RunScanView drives
// the same events through a Bubble Tea program for `scan --tui`; pressing q
// or ctrl+c cancels the scan and the partial result is still returned.
//
// Example:
//
//	printer := ui.NewPrinter(os.Stdout)
//	orch := discovery.New(opts, ui.NewConsoleSink(os.Stdout))
//	result, err := orch.Scan(ctx)
//	if err != nil {
//	    printer.PrintError("Scan failed", err, nil)
//	    return err
//	}
//	printer.PrintDevices(result.Devices, result.Cancelled)
//
// Zap logging is silent unless DEVFINDER_LOG_LEVEL or --log-level is set, so
// log lines do not interleave with this output by default.
package ui
