package probe

import (
	"net/netip"
	"strings"
)

// meshPrefix is the CGNAT range the mesh VPN assigns node addresses from.
var meshPrefix = netip.MustParsePrefix("100.64.0.0/10")

// IsMeshAddress reports whether host is a mesh VPN address or MagicDNS name.
func IsMeshAddress(host string) bool {
	if strings.HasSuffix(strings.TrimSuffix(host, "."), ".ts.net") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return meshPrefix.Contains(addr.Unmap())
}
