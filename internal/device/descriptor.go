package device

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Source identifies which discovery phase produced a descriptor.
type Source string

const (
	SourceMesh        Source = "mesh"
	SourceHostname    Source = "hostname"
	SourceSubnetProbe Source = "subnet-probe"
)

// TransportClass groups sources by how the appliance is reached.
type TransportClass int

const (
	// ClassLocal is a direct path on the local network (hostname, subnet-probe)
	ClassLocal TransportClass = iota
	// ClassRemote is a path through the mesh VPN
	ClassRemote
)

// String returns the class name
func (c TransportClass) String() string {
	if c == ClassRemote {
		return "remote"
	}
	return "local"
}

// Class returns the transport class of the source
func (s Source) Class() TransportClass {
	if s == SourceMesh {
		return ClassRemote
	}
	return ClassLocal
}

// Address is where an appliance instance answers HTTP.
type Address struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// NewAddress builds an Address with its base URL filled in
func NewAddress(host string, port int) Address {
	return Address{
		Host: host,
		Port: port,
		URL:  BaseURL(host, port),
	}
}

// BaseURL returns the HTTP base URL for host:port
func BaseURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Quality describes the connection path to the appliance.
type Quality struct {
	IsP2P     bool   `json:"isP2P"`
	LatencyMs *int64 `json:"latencyMs,omitempty"`
}

// Descriptor is one reachable instance of the appliance.
type Descriptor struct {
	// ID is the stable identity used to merge transports
	ID string `json:"id"`

	// Name is the appliance-reported name, or an address-derived fallback
	Name string `json:"name"`

	// Address is the primary connection path
	Address Address `json:"address"`

	// FallbackURL is a secondary transport kept for resilience
	FallbackURL string `json:"fallbackUrl,omitempty"`

	Source Source `json:"source"`

	// Platform and Version are capability metadata, both optional
	Platform string `json:"platform,omitempty"`
	Version  string `json:"version,omitempty"`

	Quality Quality `json:"connectionQuality"`

	DiscoveredAt time.Time `json:"discoveredAt"`
}

// String returns a human-readable representation of the descriptor
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%s) at %s via %s", d.Name, d.ID, d.Address.URL, d.Source)
}

// TransportClass returns the class of the descriptor's primary source
func (d *Descriptor) TransportClass() TransportClass {
	return d.Source.Class()
}

// HasFallback reports whether a secondary transport is attached
func (d *Descriptor) HasFallback() bool {
	return d.FallbackURL != ""
}

// SetLatency records a measured round-trip time
func (d *Descriptor) SetLatency(rtt time.Duration) {
	ms := rtt.Milliseconds()
	d.Quality.LatencyMs = &ms
}

// Clone returns a deep copy safe to hand to event sinks.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	if d.Quality.LatencyMs != nil {
		ms := *d.Quality.LatencyMs
		c.Quality.LatencyMs = &ms
	}
	return &c
}

// SyntheticID derives a stable ID from transport and address, used when the
// appliance does not report its own device_id.
func SyntheticID(source Source, host string) string {
	r := strings.NewReplacer(".", "-", ":", "-", "%", "-")
	return string(source) + "-" + r.Replace(host)
}

// FallbackName is the display name used when capabilities are unavailable.
func FallbackName(host string) string {
	return fmt.Sprintf("R58 (%s)", host)
}

// rankTier: local, then P2P mesh, then relayed mesh.
func rankTier(d Descriptor) int {
	switch {
	case d.TransportClass() == ClassLocal:
		return 0
	case d.Quality.IsP2P:
		return 1
	default:
		return 2
	}
}

// Rank sorts descriptors by connection quality, best first. Descriptors
// without a latency measurement sort after measured ones in the same tier.
func Rank(descs []Descriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		a, b := descs[i], descs[j]
		if ta, tb := rankTier(a), rankTier(b); ta != tb {
			return ta < tb
		}
		la, lb := a.Quality.LatencyMs, b.Quality.LatencyMs
		switch {
		case la != nil && lb == nil:
			return true
		case la == nil && lb != nil:
			return false
		case la != nil && lb != nil && *la != *lb:
			return *la < *lb
		}
		return a.Name < b.Name
	})
}
