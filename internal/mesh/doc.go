// Package mesh queries the Tailscale mesh VPN through its CLI.
//
// The client shells out to `tailscale status --json` and
// `tailscale ping --c 3 <host>`. The CLI has no structured error codes for
// "not installed", "daemon stopped" and "not logged in", so GetStatus
// classifies failures by matching the error text.
//
// Peers are probed with the shared probe primitive; a peer whose hostname
// looks like the appliance but fails the health probe is not reported.
//
// # Usage Example
//
//	client := mesh.NewClient(mesh.DefaultConfig())
//	status := client.GetStatus(ctx)
//	if status.Usable() {
//	    devices, err := client.ProbeForDevices(ctx)
//	    ...
//	}
package mesh
