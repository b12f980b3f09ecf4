package main

import (
	"github.com/r58studio/devfinder/internal/config"
	"github.com/r58studio/devfinder/internal/discovery"
	"github.com/r58studio/devfinder/internal/hostname"
	"github.com/r58studio/devfinder/internal/mesh"
)

// phaseOverrides are the --no-* scan flags
type phaseOverrides struct {
	noMesh     bool
	noHostname bool
	noSubnet   bool
}

// buildOptions maps the settings file onto orchestrator options.
func buildOptions(c *config.Config, o phaseOverrides) discovery.Options {
	d := c.Discovery

	meshCfg := mesh.DefaultConfig()
	meshCfg.BinaryPath = c.Mesh.Binary
	meshCfg.StatusTimeout = c.Mesh.StatusTimeout
	meshCfg.PingTimeout = c.Mesh.PingTimeout
	meshCfg.ProbeTimeout = d.Timeouts.Probe
	meshCfg.Port = d.Port

	hostCfg := hostname.DefaultConfig()
	hostCfg.FixedIPs = append([]string(nil), d.FixedIPs...)
	hostCfg.Hostnames = append([]string(nil), d.Hostnames...)
	hostCfg.Port = d.Port
	hostCfg.Timeout = d.Timeouts.Probe
	hostCfg.MDNS = d.MDNS.Enabled
	hostCfg.MDNSService = d.MDNS.Service
	hostCfg.MDNSWindow = d.MDNS.Window

	return discovery.Options{
		EnableMesh:     d.Phases.Mesh && !o.noMesh,
		EnableHostname: d.Phases.Hostname && !o.noHostname,
		EnableSubnet:   d.Phases.Subnet && !o.noSubnet,
		Mesh:           meshCfg,
		Hostname:       hostCfg,
		SubnetPort:     d.Port,
		SubnetTimeout:  d.Timeouts.Subnet,
		ManualTimeout:  d.Timeouts.Probe,
	}
}

func phaseNames(phases []discovery.Phase) string {
	if len(phases) == 0 {
		return "none"
	}
	s := string(phases[0])
	for _, p := range phases[1:] {
		s += ", " + string(p)
	}
	return s
}
