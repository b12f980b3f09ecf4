package subnet

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/probe"
)

const (
	// DefaultBatchSize is the number of concurrent probes per batch
	DefaultBatchSize = 25

	// DefaultBatchPause separates consecutive batches
	DefaultBatchPause = 100 * time.Millisecond
)

// Progress reports how far a sweep has got through one subnet.
type Progress struct {
	Subnet netip.Prefix
	Probed int
	Total  int
	Found  int
}

// Scanner sweeps subnets in batches.
type Scanner struct {
	// Probe checks a single host
	Probe probe.Func

	Port       int
	Timeout    time.Duration
	BatchSize  int
	BatchPause time.Duration

	// Sleep waits between batches. It returns early if ctx is done.
	Sleep func(ctx context.Context, d time.Duration)

	// OnProgress is called after every batch
	OnProgress func(Progress)
}

// NewScanner creates a scanner with the standard batch settings.
func NewScanner() *Scanner {
	return &Scanner{
		Probe:      probe.ProbeDevice,
		Port:       probe.DefaultPort,
		Timeout:    probe.SubnetTimeout,
		BatchSize:  DefaultBatchSize,
		BatchPause: DefaultBatchPause,
		Sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ScanSubnet probes every host of subnet and returns the appliances found
// in address order. onFound, if set, is called from the probing goroutines
// as each appliance is found.
//
// Cancellation is honoured between batches only: once ctx is done no new
// batch starts, and the probes already in flight finish on their own
// timeout. The context error is returned when the sweep stopped early.
func (s *Scanner) ScanSubnet(ctx context.Context, subnet netip.Prefix, onFound func(device.Descriptor)) ([]device.Descriptor, error) {
	hosts := Hosts(subnet)
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	logging.Debug("Subnet sweep starting",
		zap.String("subnet", subnet.String()),
		zap.Int("hosts", len(hosts)),
		zap.Int("batch_size", batchSize),
	)

	results := make([]*device.Descriptor, len(hosts))
	var mu sync.Mutex
	probed, found := 0, 0

	for start := 0; start < len(hosts); start += batchSize {
		if start > 0 {
			sleep(ctx, s.BatchPause)
		}
		if ctx.Err() != nil {
			logging.Info("Subnet sweep cancelled",
				zap.String("subnet", subnet.String()),
				zap.Int("probed", probed),
			)
			break
		}

		end := min(start+batchSize, len(hosts))

		var g errgroup.Group
		for i := start; i < end; i++ {
			host := hosts[i].String()
			g.Go(func() error {
				desc := s.Probe(ctx, host, s.Port, s.Timeout, device.SourceSubnetProbe)
				if desc == nil {
					return nil
				}
				mu.Lock()
				results[i] = desc
				found++
				mu.Unlock()
				if onFound != nil {
					onFound(*desc)
				}
				return nil
			})
		}
		_ = g.Wait()

		probed = end
		if s.OnProgress != nil {
			s.OnProgress(Progress{Subnet: subnet, Probed: probed, Total: len(hosts), Found: found})
		}
	}

	devices := make([]device.Descriptor, 0, found)
	for _, d := range results {
		if d != nil {
			devices = append(devices, *d)
		}
	}

	if err := ctx.Err(); err != nil && probed < len(hosts) {
		return devices, err
	}
	return devices, nil
}
