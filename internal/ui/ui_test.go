package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/discovery"
)

func localDevice() device.Descriptor {
	d := device.Descriptor{
		ID:       "r58-001",
		Name:     "Studio A",
		Address:  device.NewAddress("192.168.1.50", 8000),
		Source:   device.SourceHostname,
		Platform: "rk3588",
	}
	return d
}

func meshDevice(p2p bool) device.Descriptor {
	return device.Descriptor{
		ID:      "r58-002",
		Name:    "Studio B",
		Address: device.NewAddress("100.64.0.7", 8000),
		Source:  device.SourceMesh,
		Quality: device.Quality{IsP2P: p2p},
	}
}

func TestPathLabel(t *testing.T) {
	tests := []struct {
		name string
		dev  device.Descriptor
		want string
	}{
		{"local", localDevice(), "local"},
		{"mesh direct", meshDevice(true), "mesh (direct)"},
		{"mesh relayed", meshDevice(false), "mesh (relayed)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathLabel(tt.dev); got != tt.want {
				t.Errorf("PathLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDeviceCard(t *testing.T) {
	d := localDevice()
	d.FallbackURL = "http://100.64.0.7:8000"
	d.SetLatency(12_000_000) // 12ms

	out := RenderDeviceCard(d, 80)
	for _, want := range []string{"Studio A", "r58-001", "http://192.168.1.50:8000", "http://100.64.0.7:8000", "12 ms", "rk3588", "local"} {
		if !strings.Contains(out, want) {
			t.Errorf("card missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDeviceCardOmitsEmptyFields(t *testing.T) {
	out := RenderDeviceCard(meshDevice(false), 80)
	for _, absent := range []string{"Fallback", "Latency", "Platform", "Version"} {
		if strings.Contains(out, absent) {
			t.Errorf("card should not contain %q:\n%s", absent, out)
		}
	}
}

func TestHeaderParamsSorted(t *testing.T) {
	out := NewHeader("Device scan", "devfinder scan", map[string]string{
		"Zeta":  "last",
		"Alpha": "first",
	}).SetWidth(80).Render()

	if !strings.Contains(out, "DEVICE SCAN") {
		t.Errorf("header missing upper-cased title:\n%s", out)
	}
	if strings.Index(out, "Alpha") > strings.Index(out, "Zeta") {
		t.Errorf("params not sorted:\n%s", out)
	}
}

func TestResultRender(t *testing.T) {
	out := NewFailureResult("Probe failed", errors.New("not an appliance"), []string{"Check the port"}).
		SetWidth(80).Render()
	for _, want := range []string{"FAILED", "Probe failed", "not an appliance", "Check the port"} {
		if !strings.Contains(out, want) {
			t.Errorf("result missing %q:\n%s", want, out)
		}
	}

	out = NewSuccessResult("Mesh", nil).AddDetail("Self IP", "100.64.0.1").SetWidth(80).Render()
	if !strings.Contains(out, "SUCCESS") || !strings.Contains(out, "100.64.0.1") {
		t.Errorf("unexpected success box:\n%s", out)
	}
}

func TestPrinterPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)

	p.PrintDevices(nil, true)
	if !strings.Contains(buf.String(), "NO DEVICES FOUND") || !strings.Contains(buf.String(), "cancelled") {
		t.Errorf("unexpected empty output:\n%s", buf.String())
	}

	buf.Reset()
	p.PrintDevices([]device.Descriptor{localDevice(), meshDevice(true)}, false)
	out := buf.String()
	if !strings.Contains(out, "2 DEVICE(S) FOUND") {
		t.Errorf("missing count:\n%s", out)
	}
	if strings.Index(out, "Studio A") > strings.Index(out, "Studio B") {
		t.Errorf("devices printed out of order:\n%s", out)
	}
}

func TestProgressSteps(t *testing.T) {
	p := NewProgress("", []string{"mesh", "hostname", "subnet"})

	p.Start("mesh", "")
	p.Start("hostname", "")
	if p.Steps[0].Status != StepComplete {
		t.Errorf("mesh status = %v, want complete", p.Steps[0].Status)
	}
	if p.Steps[1].Status != StepRunning {
		t.Errorf("hostname status = %v, want running", p.Steps[1].Status)
	}

	p.Start("unknown", "")
	p.Finish(true)
	if p.Steps[1].Status != StepFailed || p.Steps[1].Message != "cancelled" {
		t.Errorf("hostname step = %+v, want failed/cancelled", p.Steps[1])
	}
	if p.Steps[2].Status != StepSkipped {
		t.Errorf("subnet status = %v, want skipped", p.Steps[2].Status)
	}

	p.SetPercent(1.7)
	if p.Percent != 1 {
		t.Errorf("Percent = %v, want clamped to 1", p.Percent)
	}
}

func TestFormatEvent(t *testing.T) {
	d := localDevice()
	tests := []struct {
		name  string
		event discovery.Event
		want  string
	}{
		{"started", discovery.Event{Type: discovery.EventStarted}, "Scanning"},
		{"phase", discovery.Event{Type: discovery.EventPhase, Phase: discovery.PhaseMesh, Message: "Checking mesh VPN peers"}, "Checking mesh VPN peers"},
		{"subnet", discovery.Event{Type: discovery.EventScanningSubnet, Subnet: "192.168.1.0/24", Message: "eth0"}, "192.168.1.0/24 on eth0"},
		{"progress partial", discovery.Event{Type: discovery.EventSubnetProgress, Subnet: "192.168.1.0/24", Probed: 25, Total: 254}, ""},
		{"progress done", discovery.Event{Type: discovery.EventSubnetProgress, Subnet: "192.168.1.0/24", Probed: 254, Total: 254}, "254 hosts probed"},
		{"found", discovery.Event{Type: discovery.EventDeviceFound, Device: &d}, "http://192.168.1.50:8000"},
		{"found nil", discovery.Event{Type: discovery.EventDeviceFound}, ""},
		{"complete", discovery.Event{Type: discovery.EventComplete, Devices: []device.Descriptor{d}}, "1 device(s) found"},
		{"cancelled", discovery.Event{Type: discovery.EventComplete, Cancelled: true}, "Scan cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatEvent(tt.event)
			if tt.want == "" {
				if got != "" {
					t.Errorf("FormatEvent() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("FormatEvent() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestConsoleSinkSkipsEmptyLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	sink.Emit(discovery.Event{Type: discovery.EventSubnetProgress, Probed: 1, Total: 254})
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	sink.Emit(discovery.Event{Type: discovery.EventStarted})
	if lines := strings.Count(buf.String(), "\n"); lines != 1 {
		t.Errorf("expected 1 line, got %d", lines)
	}
}

func TestScanModelEvents(t *testing.T) {
	phases := []discovery.Phase{discovery.PhaseHostname, discovery.PhaseSubnet}
	var model tea.Model = NewScanModel(phases, nil)

	d := localDevice()
	merged := d
	merged.FallbackURL = "http://100.64.0.7:8000"

	for _, e := range []discovery.Event{
		{Type: discovery.EventStarted},
		{Type: discovery.EventPhase, Phase: discovery.PhaseHostname},
		{Type: discovery.EventDeviceFound, Device: &d},
		{Type: discovery.EventPhase, Phase: discovery.PhaseSubnet},
		{Type: discovery.EventScanningSubnet, Subnet: "192.168.1.0/24"},
		{Type: discovery.EventSubnetProgress, Probed: 127, Total: 254},
		{Type: discovery.EventDeviceFound, Device: &merged},
	} {
		model, _ = model.Update(eventMsg(e))
	}

	m := model.(ScanModel)
	if len(m.Devices) != 1 {
		t.Fatalf("expected merged device list of 1, got %d", len(m.Devices))
	}
	if !m.Devices[0].HasFallback() {
		t.Error("expected the merged descriptor to replace the first")
	}
	if m.Progress.Steps[0].Status != StepComplete || m.Progress.Steps[1].Status != StepRunning {
		t.Errorf("unexpected steps: %+v", m.Progress.Steps)
	}
	if m.Progress.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", m.Progress.Percent)
	}
	if !strings.Contains(m.View(), "Studio A") {
		t.Errorf("view missing device:\n%s", m.View())
	}

	model, cmd := model.Update(scanDoneMsg{result: discovery.Result{Devices: []device.Descriptor{merged}}})
	if cmd == nil {
		t.Fatal("expected quit command after scan finished")
	}
	m = model.(ScanModel)
	if !m.Done || !strings.Contains(m.View(), "Scan complete") {
		t.Errorf("unexpected final view:\n%s", m.View())
	}
}

func TestScanModelInterruptCancels(t *testing.T) {
	cancelled := false
	var model tea.Model = NewScanModel([]discovery.Phase{discovery.PhaseSubnet}, func() { cancelled = true })

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Fatal("expected ctrl+c to cancel the scan")
	}
	m := model.(ScanModel)
	if m.Done || !m.Stopping {
		t.Errorf("expected stopping state, got done=%v stopping=%v", m.Done, m.Stopping)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := Confirm(strings.NewReader(tt.input), &out, "Overwrite", []string{"config exists"}, "Overwrite?"); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
