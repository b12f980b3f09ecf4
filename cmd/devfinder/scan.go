package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/discovery"
	"github.com/r58studio/devfinder/internal/probe"
	"github.com/r58studio/devfinder/internal/ui"
)

// Scan command flags
var (
	scanJSON  bool
	scanTUI   bool
	overrides phaseOverrides
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(probeCmd)

	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the result as JSON")
	scanCmd.Flags().BoolVar(&scanTUI, "tui", false, "Show a live scan view")
	scanCmd.Flags().BoolVar(&overrides.noMesh, "no-mesh", false, "Skip the mesh VPN phase")
	scanCmd.Flags().BoolVar(&overrides.noHostname, "no-hostname", false, "Skip the hostname phase")
	scanCmd.Flags().BoolVar(&overrides.noSubnet, "no-subnet", false, "Skip the subnet sweep")
	scanCmd.MarkFlagsMutuallyExclusive("json", "tui")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for appliances",
	Long: `Run a full discovery scan and list every appliance found, best
connection first: local network, then direct mesh paths, then relayed ones.

Press Ctrl+C to stop early; devices found so far are still listed.`,
	Example: `  # Scan with every configured phase
  devfinder scan

  # LAN only
  devfinder scan --no-mesh

  # Live view
  devfinder scan --tui

  # Machine-readable output
  devfinder scan --json --no-subnet`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanTUI && !ui.IsTerminal() {
		return fmt.Errorf("--tui requires a terminal")
	}

	opts := buildOptions(cfg, overrides)
	phases := opts.Phases()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		result discovery.Result
		err    error
	)
	switch {
	case scanTUI:
		result, err = ui.RunScanView(ctx, os.Stdout, phases, func(ctx context.Context, sink discovery.EventSink) (discovery.Result, error) {
			return discovery.New(opts, sink).Scan(ctx)
		})
	case scanJSON:
		result, err = discovery.New(opts, nil).Scan(ctx)
	default:
		printer := ui.NewPrinter(os.Stdout)
		printer.PrintHeader("Device scan", cmd.CommandPath(), map[string]string{
			"Phases": phaseNames(phases),
			"Port":   fmt.Sprint(opts.SubnetPort),
		})
		result, err = discovery.New(opts, ui.NewConsoleSink(os.Stdout)).Scan(ctx)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanJSON {
		return printJSON(result)
	}

	printer := ui.NewPrinter(os.Stdout)
	printer.Newline()
	printer.PrintDevices(result.Devices, result.Cancelled)
	if len(result.Devices) == 0 && !result.Cancelled {
		printer.PrintError("No appliance answered", nil, []string{
			"Check the appliance is powered on and its API is on port " + fmt.Sprint(opts.SubnetPort),
			"Run 'devfinder mesh status' to check the mesh VPN",
			"Probe a known address with 'devfinder probe <url>'",
		})
	}
	return nil
}

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Check a specific address",
	Long: `Probe one address for an appliance. The argument may be a full URL,
host:port, or a bare host (port 8000 is assumed).`,
	Example: `  devfinder probe 192.168.1.50
  devfinder probe http://r58.local:8000
  devfinder probe 100.101.102.103:8000 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the descriptor as JSON")
}

func runProbe(cmd *cobra.Command, args []string) error {
	orch := discovery.New(buildOptions(cfg, phaseOverrides{}), nil)

	d, err := orch.ProbeSpecificURL(cmd.Context(), args[0])
	if err != nil {
		if scanJSON {
			return err
		}
		tips := []string{"Check the address and port", "Confirm the appliance API is running"}
		if errors.Is(err, probe.ErrInvalidURL) {
			tips = []string{"Use a URL, host:port or bare host"}
		}
		ui.NewPrinter(os.Stdout).PrintError("Probe failed", err, tips)
		return fmt.Errorf("no appliance at %s", args[0])
	}

	if scanJSON {
		return printJSON(d)
	}
	printer := ui.NewPrinter(os.Stdout)
	printer.PrintDevice(*d)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// printDeviceList is shared by commands that list descriptors
func printDeviceList(devices []device.Descriptor, asJSON bool) error {
	if asJSON {
		if devices == nil {
			devices = []device.Descriptor{}
		}
		return printJSON(devices)
	}
	ui.NewPrinter(os.Stdout).PrintDevices(devices, false)
	return nil
}
