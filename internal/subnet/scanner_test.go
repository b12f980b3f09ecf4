package subnet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/r58studio/devfinder/internal/device"
)

// fakeClock models elapsed time for a sweep. Probes in a batch run in
// parallel, so a batch costs its slowest probe; Sleep then adds the pause.
type fakeClock struct {
	mu      sync.Mutex
	elapsed time.Duration
	pending time.Duration
	sleeps  int
}

func (c *fakeClock) block(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = max(c.pending, d)
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed += c.pending + d
	c.pending = 0
	c.sleeps++
}

func (c *fakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed + c.pending
}

func TestScanSubnet_AllTimeouts(t *testing.T) {
	clock := &fakeClock{}
	var probes atomic.Int32

	s := NewScanner()
	s.Sleep = clock.Sleep
	s.Probe = func(_ context.Context, _ string, _ int, timeout time.Duration, _ device.Source) *device.Descriptor {
		probes.Add(1)
		clock.block(timeout)
		return nil
	}

	var progress []Progress
	s.OnProgress = func(p Progress) { progress = append(progress, p) }

	devices, err := s.ScanSubnet(context.Background(), pfx("192.168.1.0/24"), nil)
	if err != nil {
		t.Fatalf("ScanSubnet() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("ScanSubnet() found %d devices, want 0", len(devices))
	}
	if got := probes.Load(); got != 254 {
		t.Errorf("probes = %d, want 254", got)
	}

	// 11 batches of 1.2s and 10 pauses of 100ms
	want := 11*1200*time.Millisecond + 10*100*time.Millisecond
	if got := clock.Elapsed(); got != want {
		t.Errorf("elapsed = %v, want %v", got, want)
	}
	if clock.sleeps != 10 {
		t.Errorf("pauses = %d, want 10", clock.sleeps)
	}

	if len(progress) != 11 {
		t.Fatalf("progress callbacks = %d, want 11", len(progress))
	}
	last := progress[len(progress)-1]
	if last.Probed != 254 || last.Total != 254 {
		t.Errorf("last progress = %+v", last)
	}
	if progress[0].Probed != 25 {
		t.Errorf("first progress = %+v, want 25 probed", progress[0])
	}
}

func TestScanSubnet_BatchConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex

	s := NewScanner()
	s.Sleep = func(context.Context, time.Duration) {}
	s.Probe = func(_ context.Context, _ string, _ int, _ time.Duration, _ device.Source) *device.Descriptor {
		n := inFlight.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	if _, err := s.ScanSubnet(context.Background(), pfx("10.0.0.0/24"), nil); err != nil {
		t.Fatalf("ScanSubnet() error = %v", err)
	}
	if p := peak.Load(); p > DefaultBatchSize {
		t.Errorf("peak in-flight probes = %d, want <= %d", p, DefaultBatchSize)
	}
}

func TestScanSubnet_Found(t *testing.T) {
	s := NewScanner()
	s.Sleep = func(context.Context, time.Duration) {}
	s.Probe = func(_ context.Context, host string, port int, timeout time.Duration, source device.Source) *device.Descriptor {
		if timeout != 1200*time.Millisecond {
			t.Errorf("timeout = %v, want 1.2s", timeout)
		}
		if host != "192.168.1.20" && host != "192.168.1.200" {
			return nil
		}
		return &device.Descriptor{
			ID:      device.SyntheticID(source, host),
			Address: device.NewAddress(host, port),
			Source:  source,
		}
	}

	var mu sync.Mutex
	var streamed []string
	devices, err := s.ScanSubnet(context.Background(), pfx("192.168.1.0/24"), func(d device.Descriptor) {
		mu.Lock()
		streamed = append(streamed, d.Address.Host)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("ScanSubnet() error = %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("ScanSubnet() = %+v, want 2 devices", devices)
	}
	if devices[0].Address.Host != "192.168.1.20" || devices[1].Address.Host != "192.168.1.200" {
		t.Errorf("devices not in address order: %s, %s", devices[0].Address.Host, devices[1].Address.Host)
	}
	if devices[0].Source != device.SourceSubnetProbe {
		t.Errorf("Source = %q", devices[0].Source)
	}
	if devices[0].Address.Port != 8000 {
		t.Errorf("Port = %d", devices[0].Address.Port)
	}
	if len(streamed) != 2 {
		t.Errorf("onFound called %d times, want 2", len(streamed))
	}
}

// Cancelling during the first batch lets that batch finish and schedules
// nothing further.
func TestScanSubnet_StopsAtBatchBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var probes atomic.Int32
	s := NewScanner()
	s.Sleep = func(context.Context, time.Duration) {}
	s.Probe = func(_ context.Context, _ string, _ int, _ time.Duration, _ device.Source) *device.Descriptor {
		if probes.Add(1) == 1 {
			cancel()
		}
		return nil
	}

	_, err := s.ScanSubnet(ctx, pfx("192.168.1.0/24"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ScanSubnet() error = %v, want context.Canceled", err)
	}
	if got := probes.Load(); got != DefaultBatchSize {
		t.Errorf("probes = %d, want exactly one batch of %d", got, DefaultBatchSize)
	}
}

func TestScanSubnet_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner()
	s.Probe = func(context.Context, string, int, time.Duration, device.Source) *device.Descriptor {
		t.Error("no probe should run")
		return nil
	}

	if _, err := s.ScanSubnet(ctx, pfx("192.168.1.0/24"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("ScanSubnet() error = %v", err)
	}
}
