package device

import (
	"testing"
	"time"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{"ipv4", "192.168.1.20", 8000, "http://192.168.1.20:8000"},
		{"hostname", "r58.local", 80, "http://r58.local:80"},
		{"ipv6", "fe80::1", 8000, "http://[fe80::1]:8000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseURL(tt.host, tt.port); got != tt.expected {
				t.Errorf("BaseURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSource_Class(t *testing.T) {
	tests := []struct {
		source Source
		want   TransportClass
	}{
		{SourceMesh, ClassRemote},
		{SourceHostname, ClassLocal},
		{SourceSubnetProbe, ClassLocal},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			if got := tt.source.Class(); got != tt.want {
				t.Errorf("Class() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyntheticID(t *testing.T) {
	if got := SyntheticID(SourceSubnetProbe, "192.168.1.20"); got != "subnet-probe-192-168-1-20" {
		t.Errorf("SyntheticID() = %q", got)
	}
	if got := SyntheticID(SourceMesh, "fd7a:115c::1"); got != "mesh-fd7a-115c--1" {
		t.Errorf("SyntheticID() = %q", got)
	}
}

func TestDescriptor_Clone(t *testing.T) {
	d := &Descriptor{ID: "abc", Name: "Studio A"}
	d.SetLatency(12 * time.Millisecond)

	c := d.Clone()
	*c.Quality.LatencyMs = 99

	if *d.Quality.LatencyMs != 12 {
		t.Errorf("Clone shares latency pointer: original = %d", *d.Quality.LatencyMs)
	}
}

func latency(ms int64) *int64 { return &ms }

func TestRank(t *testing.T) {
	descs := []Descriptor{
		{ID: "relay", Name: "a", Source: SourceMesh, Quality: Quality{IsP2P: false, LatencyMs: latency(5)}},
		{ID: "p2p", Name: "b", Source: SourceMesh, Quality: Quality{IsP2P: true, LatencyMs: latency(40)}},
		{ID: "local-slow", Name: "c", Source: SourceSubnetProbe, Quality: Quality{IsP2P: true, LatencyMs: latency(30)}},
		{ID: "local-unmeasured", Name: "d", Source: SourceHostname, Quality: Quality{IsP2P: true}},
		{ID: "local-fast", Name: "e", Source: SourceHostname, Quality: Quality{IsP2P: true, LatencyMs: latency(2)}},
	}

	Rank(descs)

	want := []string{"local-fast", "local-slow", "local-unmeasured", "p2p", "relay"}
	for i, id := range want {
		if descs[i].ID != id {
			t.Errorf("Rank()[%d] = %s, want %s", i, descs[i].ID, id)
		}
	}
}
