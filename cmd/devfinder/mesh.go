package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r58studio/devfinder/internal/discovery"
	"github.com/r58studio/devfinder/internal/mesh"
	"github.com/r58studio/devfinder/internal/ui"
)

var meshJSON bool

func init() {
	rootCmd.AddCommand(meshCmd)
	meshCmd.AddCommand(meshStatusCmd)
	meshCmd.AddCommand(meshDevicesCmd)
	meshCmd.AddCommand(meshPingCmd)

	meshCmd.PersistentFlags().BoolVar(&meshJSON, "json", false, "Print the result as JSON")
}

var meshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Inspect the mesh VPN",
	Long:  `Query the local mesh VPN (tailscale) and the appliances among its peers.`,
}

var meshStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mesh VPN state",
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := discovery.New(buildOptions(cfg, phaseOverrides{}), nil)
		status := orch.MeshStatus(cmd.Context())
		if meshJSON {
			return printJSON(status)
		}

		details := map[string]string{
			"Installed": yesNo(status.Installed),
			"Running":   yesNo(status.Running),
			"Logged in": yesNo(status.LoggedIn),
		}
		if status.SelfIP != "" {
			details["Self IP"] = status.SelfIP
		}
		if status.Version != "" {
			details["Version"] = status.Version
		}

		printer := ui.NewPrinter(os.Stdout)
		if status.Usable() {
			printer.PrintSuccess("Mesh VPN ready", details)
			return nil
		}
		if status.Error != "" {
			details["Reason"] = status.Error
		}
		printer.PrintWarning("Mesh VPN unavailable", details)
		return nil
	},
}

var meshDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Probe mesh peers for appliances",
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := discovery.New(buildOptions(cfg, phaseOverrides{}), nil)
		if status := orch.MeshStatus(cmd.Context()); !status.Usable() {
			return fmt.Errorf("mesh VPN unavailable: %s", status.Error)
		}

		devices, err := orch.FindMeshDevices(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to probe mesh peers: %w", err)
		}
		return printDeviceList(devices, meshJSON)
	},
}

var meshPingCmd = &cobra.Command{
	Use:   "ping <host>",
	Short: "Measure the mesh path to a peer",
	Long: `Ping a peer through the mesh VPN and report latency and whether the
path is direct (peer to peer) or relayed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mesh.NewClient(buildOptions(cfg, phaseOverrides{}).Mesh)
		result, err := client.PingPeer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if meshJSON {
			return printJSON(result)
		}

		path := "relayed"
		if result.IsP2P {
			path = "direct"
		}
		ui.NewPrinter(os.Stdout).PrintSuccess("Mesh ping "+args[0], map[string]string{
			"Latency": fmt.Sprintf("%d ms", result.LatencyMs),
			"Path":    path,
			"Via":     result.PeerAddr,
		})
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
