package mesh

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/probe"
)

const (
	// DefaultBinary is the mesh CLI looked up on PATH
	DefaultBinary = "tailscale"

	// DefaultStatusTimeout bounds `tailscale status --json`
	DefaultStatusTimeout = 5 * time.Second

	// DefaultPingTimeout bounds `tailscale ping`
	DefaultPingTimeout = 10 * time.Second

	// DefaultPingCount is passed as --c
	DefaultPingCount = 3
)

// appliancePattern flags peers whose hostname looks like the appliance.
// It only drives diagnostics; the health probe decides.
var appliancePattern = regexp.MustCompile(`(?i)r58`)

// Config controls how the mesh CLI is invoked.
type Config struct {
	BinaryPath    string
	StatusTimeout time.Duration
	PingTimeout   time.Duration
	PingCount     int

	// ProbeTimeout and Port apply to health probes of peers
	ProbeTimeout time.Duration
	Port         int
}

// DefaultConfig returns the standard CLI settings
func DefaultConfig() Config {
	return Config{
		BinaryPath:    DefaultBinary,
		StatusTimeout: DefaultStatusTimeout,
		PingTimeout:   DefaultPingTimeout,
		PingCount:     DefaultPingCount,
		ProbeTimeout:  probe.DefaultTimeout,
		Port:          probe.DefaultPort,
	}
}

// Client wraps the mesh CLI.
type Client struct {
	config Config
	runner Runner
	probe  probe.Func
}

// NewClient creates a client that executes the real CLI and probes with
// the package-level prober.
func NewClient(config Config) *Client {
	return NewClientWithRunner(config, ExecRunner{}, probe.ProbeDevice)
}

// NewClientWithRunner creates a client with an injected runner and probe.
func NewClientWithRunner(config Config, runner Runner, probeFn probe.Func) *Client {
	defaults := DefaultConfig()
	if config.BinaryPath == "" {
		config.BinaryPath = defaults.BinaryPath
	}
	if config.StatusTimeout <= 0 {
		config.StatusTimeout = defaults.StatusTimeout
	}
	if config.PingTimeout <= 0 {
		config.PingTimeout = defaults.PingTimeout
	}
	if config.PingCount <= 0 {
		config.PingCount = defaults.PingCount
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = defaults.ProbeTimeout
	}
	if config.Port <= 0 {
		config.Port = defaults.Port
	}

	return &Client{
		config: config,
		runner: runner,
		probe:  probeFn,
	}
}

// queryStatus runs `status --json` and decodes the result. The raw stderr
// is returned so callers can classify failures.
func (c *Client) queryStatus(ctx context.Context) (*statusJSON, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.StatusTimeout)
	defer cancel()

	stdout, stderr, runErr := c.runner.Run(ctx, c.config.BinaryPath, "status", "--json")

	// Some failure states still print a usable status document
	if len(stdout) > 0 {
		if st, err := parseStatus(stdout); err == nil {
			return st, string(stderr), nil
		} else if runErr == nil {
			return nil, string(stderr), fmt.Errorf("failed to parse mesh status: %w", err)
		}
	}

	if runErr != nil {
		return nil, string(stderr), runErr
	}
	return nil, string(stderr), errors.New("mesh status returned no output")
}

// GetStatus reports whether the mesh CLI is installed, the daemon is
// running and the node is logged in. It never fails; problems are
// described in Status.Error.
func (c *Client) GetStatus(ctx context.Context) Status {
	st, stderr, err := c.queryStatus(ctx)
	if err != nil {
		status := statusFromFailure(err, stderr)
		logging.Debug("Mesh status unavailable",
			zap.String("error", status.Error),
			zap.Error(err),
		)
		return status
	}

	status := st.toStatus()
	logging.Debug("Mesh status",
		zap.String("backend_state", st.BackendState),
		zap.String("self_ip", status.SelfIP),
		zap.Bool("usable", status.Usable()),
	)
	return status
}

// ListPeers returns the mesh peer table, excluding ingress-only nodes.
func (c *Client) ListPeers(ctx context.Context) ([]PeerInfo, error) {
	st, stderr, err := c.queryStatus(ctx)
	if err != nil {
		status := statusFromFailure(err, stderr)
		return nil, fmt.Errorf("failed to list mesh peers: %s: %w", status.Error, err)
	}
	return st.peers(), nil
}

// ProbeForDevices health-probes every online peer concurrently and returns
// the appliances found, in peer order.
func (c *Client) ProbeForDevices(ctx context.Context) ([]device.Descriptor, error) {
	peers, err := c.ListPeers(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*device.Descriptor, len(peers))
	var mu sync.Mutex
	var g errgroup.Group

	for i, peer := range peers {
		if !peer.Online || peer.IP == "" {
			continue
		}

		g.Go(func() error {
			desc := c.probe(ctx, peer.IP, c.config.Port, c.config.ProbeTimeout, device.SourceMesh)
			looksLike := appliancePattern.MatchString(peer.HostName)

			switch {
			case desc == nil && looksLike:
				logging.Debug("Peer hostname matches appliance pattern but health probe failed",
					zap.String("peer", peer.HostName),
					zap.String("ip", peer.IP),
				)
			case desc != nil && !looksLike:
				logging.Info("Appliance found on peer with unexpected hostname",
					zap.String("peer", peer.HostName),
					zap.String("ip", peer.IP),
				)
			}

			if desc == nil {
				return nil
			}
			desc.Quality.IsP2P = peer.IsP2P

			mu.Lock()
			results[i] = desc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	devices := make([]device.Descriptor, 0, len(peers))
	for _, d := range results {
		if d != nil {
			devices = append(devices, *d)
		}
	}

	logging.Info("Mesh probe complete",
		zap.Int("peers", len(peers)),
		zap.Int("devices", len(devices)),
	)
	return devices, nil
}

// PingPeer runs a mesh-level ping against host. The output is parsed even
// if the CLI exits non-zero, which it does when no direct path was found.
func (c *Client) PingPeer(ctx context.Context, host string) (PingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.PingTimeout)
	defer cancel()

	stdout, stderr, runErr := c.runner.Run(ctx, c.config.BinaryPath,
		"ping", "--c", fmt.Sprint(c.config.PingCount), host)

	if result, ok := ParsePingOutput(string(stdout)); ok {
		logging.Debug("Mesh ping",
			zap.String("host", host),
			zap.Int64("latency_ms", result.LatencyMs),
			zap.String("path", result.PeerAddr),
		)
		return result, nil
	}

	if runErr != nil {
		return PingResult{}, fmt.Errorf("failed to ping %s: %w", host, runErr)
	}
	return PingResult{}, fmt.Errorf("failed to ping %s: no response in output: %s", host, string(stderr))
}
