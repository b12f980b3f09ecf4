package hostname

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type the appliance's API advertises
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultBrowseWindow is how long the browse listens for answers
	DefaultBrowseWindow = 2 * time.Second
)

// Candidate is an address learned from mDNS.
type Candidate struct {
	Instance string
	HostName string
	IP       string
	Port     int
	Metadata map[string]string
}

// Browser lists mDNS candidates for a service type.
type Browser interface {
	Browse(ctx context.Context, service string, window time.Duration) ([]Candidate, error)
}

// ZeroconfBrowser browses with grandcat/zeroconf.
type ZeroconfBrowser struct{}

// Browse listens for service answers until window elapses or ctx is done.
func (ZeroconfBrowser) Browse(ctx context.Context, service string, window time.Duration) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan []Candidate, 1)

	go func() {
		var found []Candidate
		for entry := range entries {
			if c, ok := candidateFromEntry(entry); ok {
				found = append(found, c)
			}
		}
		done <- found
	}()

	if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// zeroconf closes entries once ctx is done
	<-ctx.Done()
	return <-done, nil
}

// candidateFromEntry converts a service entry, preferring IPv4. Entries
// without an address are skipped.
func candidateFromEntry(entry *zeroconf.ServiceEntry) (Candidate, bool) {
	if entry == nil {
		return Candidate{}, false
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		if addr4 := addr.To4(); addr4 != nil {
			ip = addr4.String()
			break
		}
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return Candidate{}, false
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return Candidate{
		Instance: entry.Instance,
		HostName: strings.TrimSuffix(entry.HostName, "."),
		IP:       ip,
		Port:     entry.Port,
		Metadata: metadata,
	}, true
}

// netResolver adapts net.Resolver to Resolver.
type netResolver struct {
	r *net.Resolver
}

func (n netResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return n.r.LookupHost(ctx, host)
}
