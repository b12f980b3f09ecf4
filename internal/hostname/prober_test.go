package hostname

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/r58studio/devfinder/internal/device"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	addrs, ok := f[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

type fakeBrowser struct {
	candidates []Candidate
	err        error
	called     bool
}

func (f *fakeBrowser) Browse(_ context.Context, _ string, _ time.Duration) ([]Candidate, error) {
	f.called = true
	return f.candidates, f.err
}

// probeRecorder answers probes for a fixed set of appliance IPs and records
// every probed address.
type probeRecorder struct {
	mu         sync.Mutex
	appliances map[string]string
	probed     []string
	ports      map[string]int
}

func (r *probeRecorder) probe(_ context.Context, host string, port int, _ time.Duration, source device.Source) *device.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probed = append(r.probed, host)
	if r.ports == nil {
		r.ports = make(map[string]int)
	}
	r.ports[host] = port

	id, ok := r.appliances[host]
	if !ok {
		return nil
	}
	return &device.Descriptor{ID: id, Address: device.NewAddress(host, port), Source: source}
}

func (r *probeRecorder) count(host string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.probed {
		if h == host {
			n++
		}
	}
	return n
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MDNSWindow = 10 * time.Millisecond
	return cfg
}

func TestDiscover_FixedIPsInPriorityOrder(t *testing.T) {
	rec := &probeRecorder{appliances: map[string]string{
		"192.168.7.1": "usb",
		"10.42.0.1":   "hotspot",
	}}
	p := NewProberWith(testConfig(), fakeResolver{}, nil, rec.probe)

	var streamed []string
	got := p.Discover(context.Background(), func(d device.Descriptor) {
		streamed = append(streamed, d.ID)
	})

	if len(got) != 2 || got[0].ID != "usb" || got[1].ID != "hotspot" {
		t.Fatalf("Discover() = %+v, want usb then hotspot", got)
	}
	if len(streamed) != 2 {
		t.Errorf("onFound called %d times, want 2", len(streamed))
	}
	for _, d := range got {
		if d.Source != device.SourceHostname {
			t.Errorf("Source = %q, want hostname", d.Source)
		}
	}
}

func TestDiscover_ResolutionIsNotProof(t *testing.T) {
	rec := &probeRecorder{appliances: map[string]string{"192.168.1.50": "real"}}
	resolver := fakeResolver{
		"r58.local":        {"192.168.1.40"},
		"r58-studio.local": {"192.168.1.50", "fe80::1"},
	}
	p := NewProberWith(testConfig(), resolver, nil, rec.probe)

	got := p.Discover(context.Background(), nil)

	if len(got) != 1 || got[0].ID != "real" {
		t.Fatalf("Discover() = %+v, want only the healthy address", got)
	}
	if rec.count("192.168.1.40") != 1 {
		t.Error("resolved address should have been probed")
	}
	if rec.count("fe80::1") != 0 {
		t.Error("IPv6 DNS answers should be ignored")
	}
}

func TestDiscover_DeduplicatesAddresses(t *testing.T) {
	rec := &probeRecorder{appliances: map[string]string{"192.168.7.1": "usb"}}
	resolver := fakeResolver{
		"r58.local":        {"192.168.7.1"},
		"r58-studio.local": {"192.168.7.1"},
	}
	browser := &fakeBrowser{candidates: []Candidate{
		{HostName: "r58.local", IP: "192.168.7.1", Port: 8000},
	}}
	p := NewProberWith(testConfig(), resolver, browser, rec.probe)

	got := p.Discover(context.Background(), nil)

	if len(got) != 1 {
		t.Fatalf("Discover() returned %d devices, want 1", len(got))
	}
	if n := rec.count("192.168.7.1"); n != 1 {
		t.Errorf("192.168.7.1 probed %d times, want 1", n)
	}
}

func TestDiscover_MDNS(t *testing.T) {
	t.Run("browsed candidates are probed at their port", func(t *testing.T) {
		rec := &probeRecorder{appliances: map[string]string{"192.168.1.77": "mdns-dev"}}
		browser := &fakeBrowser{candidates: []Candidate{
			{HostName: "studio.local", IP: "192.168.1.77", Port: 8080},
			{HostName: "printer.local", IP: "192.168.1.78"},
		}}
		p := NewProberWith(testConfig(), fakeResolver{}, browser, rec.probe)

		got := p.Discover(context.Background(), nil)

		if len(got) != 1 || got[0].ID != "mdns-dev" {
			t.Fatalf("Discover() = %+v", got)
		}
		if rec.ports["192.168.1.77"] != 8080 {
			t.Errorf("port = %d, want advertised 8080", rec.ports["192.168.1.77"])
		}
		if rec.ports["192.168.1.78"] != 8000 {
			t.Errorf("port = %d, want default 8000", rec.ports["192.168.1.78"])
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.MDNS = false
		browser := &fakeBrowser{}
		p := NewProberWith(cfg, fakeResolver{}, browser, (&probeRecorder{}).probe)

		p.Discover(context.Background(), nil)
		if browser.called {
			t.Error("browser should not be used when mDNS is disabled")
		}
	})

	t.Run("browse error is soft", func(t *testing.T) {
		rec := &probeRecorder{appliances: map[string]string{"10.42.0.1": "hotspot"}}
		browser := &fakeBrowser{err: errors.New("no multicast interface")}
		p := NewProberWith(testConfig(), fakeResolver{}, browser, rec.probe)

		got := p.Discover(context.Background(), nil)
		if len(got) != 1 {
			t.Errorf("Discover() = %+v, want fixed-IP result kept", got)
		}
	})
}

func TestDiscover_CancelledSkipsLaterSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &probeRecorder{}
	browser := &fakeBrowser{}
	resolver := fakeResolver{"r58.local": {"192.168.1.40"}}
	p := NewProberWith(testConfig(), resolver, browser, rec.probe)

	p.Discover(ctx, nil)

	if rec.count("192.168.1.40") != 0 {
		t.Error("DNS candidates should not be probed after cancellation")
	}
	if browser.called {
		t.Error("mDNS should not run after cancellation")
	}
}

func TestCandidateFromEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantOK   bool
		wantIP   string
		wantHost string
		wantPort int
	}{
		{
			name: "IPv4 with TXT",
			entry: &zeroconf.ServiceEntry{
				HostName: "r58.local.",
				Port:     8000,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
				Text:     []string{"path=/", "platform=r58", "flag"},
			},
			wantOK:   true,
			wantIP:   "192.168.1.20",
			wantHost: "r58.local",
			wantPort: 8000,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "box.local.",
				Port:     80,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantOK:   true,
			wantIP:   "fe80::1",
			wantHost: "box.local",
			wantPort: 80,
		},
		{
			name:   "no address",
			entry:  &zeroconf.ServiceEntry{HostName: "ghost.local."},
			wantOK: false,
		},
		{
			name:   "nil",
			entry:  nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := candidateFromEntry(tt.entry)
			if ok != tt.wantOK {
				t.Fatalf("candidateFromEntry() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.IP != tt.wantIP || got.HostName != tt.wantHost || got.Port != tt.wantPort {
				t.Errorf("candidateFromEntry() = %+v", got)
			}
		})
	}

	c, _ := candidateFromEntry(&zeroconf.ServiceEntry{
		AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
		Text:     []string{"platform=r58", "flag"},
	})
	if c.Metadata["platform"] != "r58" {
		t.Errorf("Metadata[platform] = %q", c.Metadata["platform"])
	}
	if v, ok := c.Metadata["flag"]; !ok || v != "" {
		t.Errorf("Metadata[flag] = %q, %v", v, ok)
	}
}
