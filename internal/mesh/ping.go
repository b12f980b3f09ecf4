package mesh

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	latencyPattern = regexp.MustCompile(`in (\d+)ms`)
	pathPattern    = regexp.MustCompile(`via ([^\s]+)`)
)

// PingResult is the outcome of a mesh-level ping.
type PingResult struct {
	IsP2P     bool   `json:"isP2P"`
	LatencyMs int64  `json:"latencyMs"`
	PeerAddr  string `json:"peerAddr"`
}

// ParsePingOutput reads the last response line of `tailscale ping`.
//
//	pong from r58 (100.101.102.103) via DERP(fra) in 34ms
//	pong from r58 (100.101.102.103) via 192.168.1.20:41641 in 2ms
func ParsePingOutput(output string) (PingResult, bool) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		m := latencyPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		latency, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return PingResult{}, false
		}

		result := PingResult{LatencyMs: latency}
		if p := pathPattern.FindStringSubmatch(line); p != nil {
			result.PeerAddr = p[1]
			result.IsP2P = !strings.Contains(p[1], "DERP")
		}
		return result, true
	}
	return PingResult{}, false
}
