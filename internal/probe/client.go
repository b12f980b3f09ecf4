package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/version"
)

const (
	// DefaultPort is the appliance's HTTP API port
	DefaultPort = 8000

	// HealthPath is the fixed health-check endpoint
	HealthPath = "/health"

	// CapabilitiesPath is the optional capability endpoint
	CapabilitiesPath = "/api/v1/capabilities"

	// SubnetTimeout is the per-host budget during a subnet sweep
	SubnetTimeout = 1200 * time.Millisecond

	// DefaultTimeout is used for mesh peers, fixed addresses and manual URLs
	DefaultTimeout = 3 * time.Second

	// maxBodySize bounds how much of a response is read
	maxBodySize = 1 << 20
)

// Func probes one host and returns a descriptor or nil. Discovery phases
// accept a Func so tests can substitute canned results.
type Func func(ctx context.Context, host string, port int, timeout time.Duration, source device.Source) *device.Descriptor

// Prober issues health and capability requests.
type Prober struct {
	// HTTPClient is the underlying HTTP client. Timeouts are applied per
	// request through the context, not on the client.
	HTTPClient *http.Client

	// Now is used for DiscoveredAt stamps
	Now func() time.Time
}

// NewProber creates a prober with a keep-alive free transport so that sweep
// probes do not leave idle sockets behind.
func NewProber() *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true

	return &Prober{
		HTTPClient: &http.Client{Transport: transport},
		Now:        time.Now,
	}
}

// FetchJSON issues a bounded GET and returns the body if the response is a
// 200 carrying valid JSON. Failures are returned as *ProbeError.
func (p *Prober) FetchJSON(ctx context.Context, rawURL string, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ProbeError{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, classify(err, rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classify(err, rawURL)
	}

	if !json.Valid(body) {
		return nil, newParseError(rawURL, errors.New("body is not valid JSON"))
	}

	return json.RawMessage(body), nil
}

// ProbeURL returns the JSON body at rawURL, or false for any expected
// network failure mode. It never returns an error.
func (p *Prober) ProbeURL(ctx context.Context, rawURL string, timeout time.Duration) (json.RawMessage, bool) {
	body, err := p.FetchJSON(ctx, rawURL, timeout)
	if err != nil {
		logging.LogProbe(rawURL, false, err.Error())
		return nil, false
	}
	return body, true
}

// ProbeDevice checks host:port for the appliance. It returns nil unless the
// health endpoint reports a healthy appliance. Capability data enriches the
// descriptor when available; otherwise the ID and name are derived from the
// address.
func (p *Prober) ProbeDevice(ctx context.Context, host string, port int, timeout time.Duration, source device.Source) *device.Descriptor {
	// In-flight probes run to their own timeout
	ctx = context.WithoutCancel(ctx)

	addr := device.NewAddress(host, port)
	healthURL := addr.URL + HealthPath

	start := time.Now()
	body, ok := p.ProbeURL(ctx, healthURL, timeout)
	rtt := time.Since(start)
	if !ok {
		return nil
	}

	result := ValidateHealth(body)
	if !result.Match {
		logging.LogProbe(healthURL, false, result.Reason)
		return nil
	}

	desc := &device.Descriptor{
		ID:           result.Health.DeviceID,
		Address:      addr,
		Source:       source,
		Platform:     result.Health.Platform,
		Version:      result.Health.Version,
		Quality:      device.Quality{IsP2P: source.Class() == device.ClassLocal},
		DiscoveredAt: p.Now(),
	}
	desc.SetLatency(rtt)

	if capBody, ok := p.ProbeURL(ctx, addr.URL+CapabilitiesPath, timeout); ok {
		if caps, ok := ParseCapabilities(capBody); ok {
			if caps.DeviceID != "" {
				desc.ID = caps.DeviceID
			}
			desc.Name = caps.DeviceName
			if caps.Platform != "" {
				desc.Platform = caps.Platform
			}
			if caps.Version != "" {
				desc.Version = caps.Version
			}
		}
	}

	if desc.ID == "" {
		desc.ID = device.SyntheticID(source, host)
	}
	if desc.Name == "" {
		desc.Name = device.FallbackName(host)
	}

	logging.LogProbe(healthURL, true, "")
	logging.Debug("Appliance descriptor built",
		zap.String("id", desc.ID),
		zap.String("name", desc.Name),
		zap.String("source", string(source)),
		zap.Duration("rtt", rtt),
	)

	return desc
}

// ProbeSpecific validates a manually entered URL. Bare hosts are accepted
// ("192.168.1.20", "r58.local:8000"); the scheme defaults to http and the
// port to DefaultPort.
func (p *Prober) ProbeSpecific(ctx context.Context, rawURL string, timeout time.Duration) (*device.Descriptor, error) {
	host, port, err := ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	source := device.SourceHostname
	if IsMeshAddress(host) {
		source = device.SourceMesh
	}

	desc := p.ProbeDevice(ctx, host, port, timeout, source)
	if desc == nil {
		return nil, fmt.Errorf("%s: %w", device.BaseURL(host, port), ErrNotAppliance)
	}
	return desc, nil
}

// ParseTarget extracts host and port from a manual URL.
func ParseTarget(rawURL string) (string, int, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", 0, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" {
		return "", 0, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	port := DefaultPort
	if ps := u.Port(); ps != "" {
		port, err = strconv.Atoi(ps)
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("%w: bad port %q", ErrInvalidURL, ps)
		}
	}

	return host, port, nil
}

var defaultProber = NewProber()

// ProbeURL probes rawURL with the package-level prober
func ProbeURL(ctx context.Context, rawURL string, timeout time.Duration) (json.RawMessage, bool) {
	return defaultProber.ProbeURL(ctx, rawURL, timeout)
}

// ProbeDevice probes host:port with the package-level prober
func ProbeDevice(ctx context.Context, host string, port int, timeout time.Duration, source device.Source) *device.Descriptor {
	return defaultProber.ProbeDevice(ctx, host, port, timeout, source)
}
