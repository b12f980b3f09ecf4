// Devfinder locates R58 recording appliances reachable from this machine.
//
// It searches the mesh VPN peer table, well-known addresses and hostnames,
// and finally sweeps the local /24 networks, merging every transport that
// reaches the same appliance into one ranked entry.
//
// Usage:
//
//	devfinder [command] [flags]
//
// Running without arguments performs a scan.
// See 'devfinder --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r58studio/devfinder/internal/config"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	logLevel   string
	configPath string
)

// cfg is loaded before any subcommand runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "devfinder",
	Short: "R58 appliance discovery",
	Long: `Find R58 recording appliances over every reachable transport.

Discovery runs in three phases:
  1. mesh      - peers of the local mesh VPN (tailscale)
  2. hostname  - fixed addresses, well-known hostnames and mDNS
  3. subnet    - a batched sweep of each local /24 network

Every candidate must pass a health check before it is reported. An appliance
seen over both the LAN and the mesh is listed once, with the mesh URL kept as
a fallback.

If no command is specified, a scan runs with the configured phases.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")

	rootCmd.AddCommand(versionCmd)
}

// setup initializes logging and loads configuration. The flag wins over the
// config file, which wins over DEVFINDER_LOG_LEVEL.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	return logging.Initialize(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devfinder %s\n", version.Full())
	},
}
