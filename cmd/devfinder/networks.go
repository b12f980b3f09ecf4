package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r58studio/devfinder/internal/subnet"
	"github.com/r58studio/devfinder/internal/ui"
)

var networksJSON bool

func init() {
	rootCmd.AddCommand(networksCmd)
	networksCmd.Flags().BoolVar(&networksJSON, "json", false, "Print the networks as JSON")
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List local networks eligible for a subnet sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		networks, err := subnet.GetLocalNetworks()
		if err != nil {
			return fmt.Errorf("failed to list networks: %w", err)
		}
		if networksJSON {
			if networks == nil {
				networks = []subnet.Network{}
			}
			return printJSON(networks)
		}

		printer := ui.NewPrinter(os.Stdout)
		if len(networks) == 0 {
			printer.PrintWarning("No eligible networks", map[string]string{
				"Excluded": "loopback, link-local, virtual interfaces",
			})
			return nil
		}

		details := make(map[string]string, len(networks))
		for _, n := range networks {
			details[n.Subnet.String()] = fmt.Sprintf("%s on %s", n.IP, n.Interface)
		}
		printer.PrintSuccess(fmt.Sprintf("%d network(s)", len(networks)), details)
		return nil
	},
}
