package hostname

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/probe"
)

var (
	// DefaultFixedIPs are the USB gadget and hotspot addresses, highest priority first
	DefaultFixedIPs = []string{"192.168.7.1", "10.42.0.1"}

	// DefaultHostnames are resolved through DNS in order
	DefaultHostnames = []string{"r58.local", "r58-studio.local", "r58"}
)

// Resolver resolves a hostname to addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Config controls the hostname phase.
type Config struct {
	FixedIPs  []string
	Hostnames []string
	Port      int
	Timeout   time.Duration

	// MDNS enables the mDNS browse step
	MDNS        bool
	MDNSService string
	MDNSWindow  time.Duration
}

// DefaultConfig returns the standard candidate lists.
func DefaultConfig() Config {
	return Config{
		FixedIPs:    append([]string(nil), DefaultFixedIPs...),
		Hostnames:   append([]string(nil), DefaultHostnames...),
		Port:        probe.DefaultPort,
		Timeout:     probe.DefaultTimeout,
		MDNS:        true,
		MDNSService: ServiceType,
		MDNSWindow:  DefaultBrowseWindow,
	}
}

// Prober runs the hostname phase.
type Prober struct {
	config   Config
	resolver Resolver
	browser  Browser
	probe    probe.Func
}

// NewProber creates a prober using the system resolver and zeroconf.
func NewProber(config Config) *Prober {
	return NewProberWith(config, netResolver{r: net.DefaultResolver}, ZeroconfBrowser{}, probe.ProbeDevice)
}

// NewProberWith creates a prober with injected dependencies. A nil browser
// disables mDNS.
func NewProberWith(config Config, resolver Resolver, browser Browser, probeFn probe.Func) *Prober {
	if config.Port <= 0 {
		config.Port = probe.DefaultPort
	}
	if config.Timeout <= 0 {
		config.Timeout = probe.DefaultTimeout
	}
	if config.MDNSService == "" {
		config.MDNSService = ServiceType
	}
	if config.MDNSWindow <= 0 {
		config.MDNSWindow = DefaultBrowseWindow
	}

	return &Prober{
		config:   config,
		resolver: resolver,
		browser:  browser,
		probe:    probeFn,
	}
}

// target is one address to probe
type target struct {
	ip   string
	port int
	via  string
}

// Discover probes all candidates and returns the appliances found in
// priority order. onFound, if set, is called as soon as each step's results
// are known. Cancellation is checked between steps.
func (p *Prober) Discover(ctx context.Context, onFound func(device.Descriptor)) []device.Descriptor {
	seen := make(map[string]bool)
	var found []device.Descriptor

	report := func(descs []device.Descriptor) {
		for _, d := range descs {
			found = append(found, d)
			if onFound != nil {
				onFound(d)
			}
		}
	}

	fixed := make([]target, 0, len(p.config.FixedIPs))
	for _, ip := range p.config.FixedIPs {
		fixed = appendTarget(fixed, seen, target{ip: ip, port: p.config.Port, via: "fixed"})
	}
	report(p.probeAll(ctx, fixed))

	if ctx.Err() != nil {
		return found
	}

	var resolved []target
	for _, t := range p.resolveAll(ctx) {
		resolved = appendTarget(resolved, seen, t)
	}
	report(p.probeAll(ctx, resolved))

	if ctx.Err() != nil || !p.config.MDNS || p.browser == nil {
		return found
	}

	candidates, err := p.browser.Browse(ctx, p.config.MDNSService, p.config.MDNSWindow)
	if err != nil {
		logging.Warn("mDNS browse failed", zap.Error(err))
		return found
	}

	var browsed []target
	for _, c := range candidates {
		port := c.Port
		if port == 0 {
			port = p.config.Port
		}
		browsed = appendTarget(browsed, seen, target{ip: c.IP, port: port, via: "mdns:" + c.HostName})
	}
	report(p.probeAll(ctx, browsed))

	return found
}

// appendTarget adds t unless its IP was already queued this phase.
func appendTarget(list []target, seen map[string]bool, t target) []target {
	addr, err := netip.ParseAddr(t.ip)
	if err != nil {
		logging.Debug("Skipping invalid candidate address", zap.String("ip", t.ip))
		return list
	}
	key := addr.Unmap().String()
	if seen[key] {
		return list
	}
	seen[key] = true
	t.ip = key
	return append(list, t)
}

// resolveAll looks up every hostname concurrently. Addresses are returned
// in hostname order, IPv4 only.
func (p *Prober) resolveAll(ctx context.Context) []target {
	results := make([][]string, len(p.config.Hostnames))
	var g errgroup.Group

	for i, host := range p.config.Hostnames {
		g.Go(func() error {
			lookupCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()

			addrs, err := p.resolver.LookupHost(lookupCtx, host)
			if err != nil {
				logging.Debug("Hostname did not resolve", zap.String("host", host), zap.Error(err))
				return nil
			}
			results[i] = addrs
			return nil
		})
	}
	_ = g.Wait()

	var targets []target
	for i, addrs := range results {
		for _, a := range addrs {
			addr, err := netip.ParseAddr(a)
			if err != nil || !addr.Unmap().Is4() {
				continue
			}
			targets = append(targets, target{ip: a, port: p.config.Port, via: p.config.Hostnames[i]})
		}
	}
	return targets
}

// probeAll probes targets concurrently and keeps their order.
func (p *Prober) probeAll(ctx context.Context, targets []target) []device.Descriptor {
	if len(targets) == 0 {
		return nil
	}

	results := make([]*device.Descriptor, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			desc := p.probe(ctx, t.ip, t.port, p.config.Timeout, device.SourceHostname)
			if desc == nil {
				return
			}
			logging.Info("Appliance found by hostname phase",
				zap.String("ip", t.ip),
				zap.String("via", t.via),
				zap.String("id", desc.ID),
			)
			mu.Lock()
			results[i] = desc
			mu.Unlock()
		}()
	}
	wg.Wait()

	var found []device.Descriptor
	for _, d := range results {
		if d != nil {
			found = append(found, *d)
		}
	}
	return found
}
