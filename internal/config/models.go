package config

import (
	"fmt"
	"net/netip"
	"time"
)

// CurrentVersion is the only file format version understood
const CurrentVersion = 1

// Config is the whole settings file.
type Config struct {
	Version   int       `yaml:"version"`
	Discovery Discovery `yaml:"discovery"`
	Mesh      Mesh      `yaml:"mesh"`
	Server    Server    `yaml:"server"`
	LogLevel  string    `yaml:"log_level,omitempty"`
}

// Discovery holds scan settings.
type Discovery struct {
	Port      int      `yaml:"port"`
	Phases    Phases   `yaml:"phases"`
	FixedIPs  []string `yaml:"fixed_ips"`
	Hostnames []string `yaml:"hostnames"`
	MDNS      MDNS     `yaml:"mdns"`
	Timeouts  Timeouts `yaml:"timeouts"`
}

// Phases switches discovery phases on and off.
type Phases struct {
	Mesh     bool `yaml:"mesh"`
	Hostname bool `yaml:"hostname"`
	Subnet   bool `yaml:"subnet"`
}

// MDNS configures the browse step of the hostname phase.
type MDNS struct {
	Enabled bool          `yaml:"enabled"`
	Service string        `yaml:"service"`
	Window  time.Duration `yaml:"window"`
}

// Timeouts are per-probe budgets.
type Timeouts struct {
	Probe  time.Duration `yaml:"probe"`  // mesh peers, fixed addresses and manual URLs
	Subnet time.Duration `yaml:"subnet"` // each host of a sweep
}

// Mesh configures the mesh VPN CLI.
type Mesh struct {
	Binary        string        `yaml:"binary"`
	StatusTimeout time.Duration `yaml:"status_timeout"`
	PingTimeout   time.Duration `yaml:"ping_timeout"`
}

// Server configures the IPC server.
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Discovery: Discovery{
			Port:      8000,
			Phases:    Phases{Mesh: true, Hostname: true, Subnet: true},
			FixedIPs:  []string{"192.168.7.1", "10.42.0.1"},
			Hostnames: []string{"r58.local", "r58-studio.local", "r58"},
			MDNS: MDNS{
				Enabled: true,
				Service: "_http._tcp",
				Window:  2 * time.Second,
			},
			Timeouts: Timeouts{
				Probe:  3 * time.Second,
				Subnet: 1200 * time.Millisecond,
			},
		},
		Mesh: Mesh{
			Binary:        "tailscale",
			StatusTimeout: 5 * time.Second,
			PingTimeout:   10 * time.Second,
		},
		Server: Server{
			Addr: "127.0.0.1:8765",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.Discovery.Port < 1 || c.Discovery.Port > 65535 {
		return fmt.Errorf("discovery.port out of range: %d", c.Discovery.Port)
	}
	for _, ip := range c.Discovery.FixedIPs {
		if _, err := netip.ParseAddr(ip); err != nil {
			return fmt.Errorf("discovery.fixed_ips: invalid address %q", ip)
		}
	}
	if c.Discovery.Timeouts.Probe <= 0 || c.Discovery.Timeouts.Subnet <= 0 {
		return fmt.Errorf("discovery.timeouts must be positive")
	}
	if c.Discovery.MDNS.Enabled && c.Discovery.MDNS.Window <= 0 {
		return fmt.Errorf("discovery.mdns.window must be positive")
	}
	if c.Mesh.Binary == "" {
		return fmt.Errorf("mesh.binary must not be empty")
	}
	return nil
}
