package mesh

import (
	"encoding/json"
	"errors"
	"net/netip"
	"os/exec"
	"sort"
	"strings"
)

// Status summarises the local mesh VPN node.
type Status struct {
	Installed bool   `json:"installed"`
	Running   bool   `json:"running"`
	LoggedIn  bool   `json:"loggedIn"`
	SelfIP    string `json:"selfIp,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Usable reports whether peers can be queried and probed
func (s Status) Usable() bool {
	return s.Installed && s.Running && s.LoggedIn
}

// PeerInfo is one node from the mesh peer table.
type PeerInfo struct {
	ID       string   `json:"id"`
	HostName string   `json:"hostName"`
	DNSName  string   `json:"dnsName,omitempty"`
	OS       string   `json:"os,omitempty"`
	IP       string   `json:"ip,omitempty"`
	IPs      []string `json:"ips,omitempty"`
	Online   bool     `json:"online"`
	IsP2P    bool     `json:"isP2P"`
	CurAddr  string   `json:"curAddr,omitempty"`
	Relay    string   `json:"relay,omitempty"`
}

// statusJSON mirrors the parts of `tailscale status --json` we read.
type statusJSON struct {
	Version      string               `json:"Version"`
	BackendState string               `json:"BackendState"`
	TailscaleIPs []string             `json:"TailscaleIPs"`
	Self         *peerJSON            `json:"Self"`
	Peer         map[string]*peerJSON `json:"Peer"`
}

type peerJSON struct {
	ID           string   `json:"ID"`
	HostName     string   `json:"HostName"`
	DNSName      string   `json:"DNSName"`
	OS           string   `json:"OS"`
	TailscaleIPs []string `json:"TailscaleIPs"`
	Online       bool     `json:"Online"`
	CurAddr      string   `json:"CurAddr"`
	Relay        string   `json:"Relay"`
	Tags         []string `json:"Tags"`
}

// derpMagicIP is the placeholder endpoint used for relayed traffic
const derpMagicIP = "127.3.3.40"

type failureKind int

const (
	failureUnknown failureKind = iota
	failureBinaryMissing
	failureDaemonStopped
	failureNotLoggedIn
)

var (
	// binaryMissingPatterns come from a shell or wrapper that could not
	// find the CLI. A bare "no such file or directory" is not among them:
	// the CLI prints it when the daemon socket is missing.
	binaryMissingPatterns = []string{
		"executable file not found",
		"command not found",
		"is not recognized as an internal or external command",
	}
	notLoggedInPatterns = []string{
		"needslogin",
		"logged out",
		"not logged in",
		"log in at",
		"login required",
	}
	daemonStoppedPatterns = []string{
		"failed to connect to local tailscale",
		"tailscaled",
		"connection refused",
		"is not running",
		"doesn't appear to be running",
		"stopped",
	}
)

// classifyFailure maps a CLI failure onto a cause. The binary counts as
// missing only when the process never started; once it ran, its output
// decides.
func classifyFailure(err error, text string) failureKind {
	if errors.Is(err, exec.ErrNotFound) {
		return failureBinaryMissing
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.ExitCode == -1 && !cliErr.TimedOut {
		return failureBinaryMissing
	}

	lower := strings.ToLower(text)
	if err != nil {
		lower += " " + strings.ToLower(err.Error())
	}

	for _, p := range notLoggedInPatterns {
		if strings.Contains(lower, p) {
			return failureNotLoggedIn
		}
	}
	for _, p := range daemonStoppedPatterns {
		if strings.Contains(lower, p) {
			return failureDaemonStopped
		}
	}
	for _, p := range binaryMissingPatterns {
		if strings.Contains(lower, p) {
			return failureBinaryMissing
		}
	}
	return failureUnknown
}

// statusFromFailure builds a Status for a failed status query.
func statusFromFailure(err error, stderr string) Status {
	msg := strings.TrimSpace(stderr)
	if msg == "" && err != nil {
		msg = err.Error()
	}

	switch classifyFailure(err, stderr) {
	case failureBinaryMissing:
		return Status{Error: "mesh VPN CLI not installed"}
	case failureNotLoggedIn:
		return Status{Installed: true, Running: true, Error: "mesh VPN not logged in"}
	case failureDaemonStopped:
		return Status{Installed: true, Error: "mesh VPN daemon not running"}
	default:
		return Status{Installed: true, Error: msg}
	}
}

// parseStatus decodes status JSON.
func parseStatus(data []byte) (*statusJSON, error) {
	var st statusJSON
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// toStatus interprets the backend state of a decoded status.
func (st *statusJSON) toStatus() Status {
	s := Status{Installed: true, Version: st.Version}

	switch st.BackendState {
	case "Running", "Starting":
		s.Running = true
		s.LoggedIn = true
	case "NeedsLogin", "NeedsMachineAuth", "NoState":
		s.Running = true
		s.Error = "mesh VPN not logged in"
	case "Stopped":
		s.LoggedIn = true
		s.Error = "mesh VPN is stopped"
	default:
		s.Error = "unknown backend state " + st.BackendState
	}

	ips := st.TailscaleIPs
	if st.Self != nil && len(st.Self.TailscaleIPs) > 0 {
		ips = st.Self.TailscaleIPs
	}
	s.SelfIP = firstIPv4(ips)

	return s
}

// peers returns the peer table without internal nodes, sorted by hostname.
func (st *statusJSON) peers() []PeerInfo {
	peers := make([]PeerInfo, 0, len(st.Peer))
	for _, p := range st.Peer {
		if p == nil || isInternalPeer(p) {
			continue
		}
		peers = append(peers, PeerInfo{
			ID:       p.ID,
			HostName: p.HostName,
			DNSName:  strings.TrimSuffix(p.DNSName, "."),
			OS:       p.OS,
			IP:       firstIPv4(p.TailscaleIPs),
			IPs:      p.TailscaleIPs,
			Online:   p.Online,
			IsP2P:    isDirect(p.CurAddr),
			CurAddr:  p.CurAddr,
			Relay:    p.Relay,
		})
	}

	sort.Slice(peers, func(i, j int) bool {
		if peers[i].HostName != peers[j].HostName {
			return peers[i].HostName < peers[j].HostName
		}
		return peers[i].ID < peers[j].ID
	})
	return peers
}

// isInternalPeer matches ingress-only nodes that never host the appliance
func isInternalPeer(p *peerJSON) bool {
	host := strings.ToLower(p.HostName)
	if host == "funnel-ingress-node" || strings.Contains(host, "ingress") {
		return true
	}
	for _, tag := range p.Tags {
		if tag == "tag:ingress" {
			return true
		}
	}
	return false
}

// isDirect: a direct address is present and it is not a relay address
func isDirect(curAddr string) bool {
	if curAddr == "" {
		return false
	}
	lower := strings.ToLower(curAddr)
	if strings.Contains(lower, "derp") {
		return false
	}
	if ap, err := netip.ParseAddrPort(curAddr); err == nil {
		return ap.Addr().String() != derpMagicIP
	}
	return !strings.HasPrefix(curAddr, derpMagicIP)
}

func firstIPv4(ips []string) string {
	for _, ip := range ips {
		if addr, err := netip.ParseAddr(ip); err == nil && addr.Is4() {
			return ip
		}
	}
	return ""
}
