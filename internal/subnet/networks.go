package subnet

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"sort"

	"go.uber.org/zap"
	"go4.org/netipx"

	"github.com/r58studio/devfinder/internal/logging"
)

// SweepBits is the prefix length every network is normalised to
const SweepBits = 24

// virtualInterfacePattern matches loopback, container, hypervisor and VPN
// interfaces that never lead to the appliance.
var virtualInterfacePattern = regexp.MustCompile(
	`^(lo|docker|br-|veth|virbr|vmnet|vboxnet|utun|tun|tap|tailscale|ts|zt|wg|cni|flannel|kube|podman|llw|awdl)`)

// excludedRanges holds address ranges never swept.
var excludedRanges = mustIPSet(
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
)

func mustIPSet(prefixes ...netip.Prefix) *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, p := range prefixes {
		b.AddPrefix(p)
	}
	set, err := b.IPSet()
	if err != nil {
		panic(err)
	}
	return set
}

// Network is a local IPv4 network eligible for sweeping.
type Network struct {
	IP        netip.Addr   `json:"ip"`
	Subnet    netip.Prefix `json:"subnet"`
	Interface string       `json:"interface"`
}

func (n Network) String() string {
	return fmt.Sprintf("%s (%s via %s)", n.Subnet, n.IP, n.Interface)
}

// Interface is the subset of interface state used for filtering.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []netip.Prefix
}

// InterfaceLister returns the host's interfaces.
type InterfaceLister func() ([]Interface, error)

// SystemInterfaces lists interfaces through the net package.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	result := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			logging.Debug("Skipping interface without addresses",
				zap.String("interface", iface.Name),
				zap.Error(err),
			)
			continue
		}

		entry := Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if prefix, ok := netipx.FromStdIPNet(ipNet); ok {
				entry.Addrs = append(entry.Addrs, prefix)
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

// GetLocalNetworks returns the sweepable /24 networks of this host.
func GetLocalNetworks() ([]Network, error) {
	return LocalNetworks(SystemInterfaces)
}

// LocalNetworks filters the interfaces returned by list.
func LocalNetworks(list InterfaceLister) ([]Network, error) {
	ifaces, err := list()
	if err != nil {
		return nil, err
	}
	return FilterNetworks(ifaces), nil
}

// FilterNetworks keeps IPv4 addresses of up, physical interfaces outside
// the excluded ranges. Each /24 is reported once.
func FilterNetworks(ifaces []Interface) []Network {
	seen := make(map[netip.Prefix]bool)
	var networks []Network

	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}
		if virtualInterfacePattern.MatchString(iface.Name) {
			logging.Debug("Skipping virtual interface", zap.String("interface", iface.Name))
			continue
		}

		for _, prefix := range iface.Addrs {
			addr := prefix.Addr().Unmap()
			if !addr.Is4() || excludedRanges.Contains(addr) {
				continue
			}

			subnet := netip.PrefixFrom(addr, SweepBits).Masked()
			if seen[subnet] {
				continue
			}
			seen[subnet] = true

			networks = append(networks, Network{
				IP:        addr,
				Subnet:    subnet,
				Interface: iface.Name,
			})
		}
	}

	sort.SliceStable(networks, func(i, j int) bool {
		return networks[i].Subnet.Addr().Less(networks[j].Subnet.Addr())
	})
	return networks
}

// Hosts returns the usable host addresses of subnet in ascending order,
// excluding the network and broadcast addresses.
func Hosts(subnet netip.Prefix) []netip.Addr {
	r := netipx.RangeOfPrefix(subnet.Masked())
	if !r.IsValid() {
		return nil
	}

	var hosts []netip.Addr
	for a := r.From().Next(); a.IsValid() && a.Less(r.To()); a = a.Next() {
		hosts = append(hosts, a)
	}
	return hosts
}
