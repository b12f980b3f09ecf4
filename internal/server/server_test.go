package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/discovery"
	"github.com/r58studio/devfinder/internal/mesh"
)

type fakeController struct {
	mu       sync.Mutex
	scanning bool
	stops    int
}

func (f *fakeController) StartScan(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanning {
		return discovery.ErrScanInProgress
	}
	f.scanning = true
	return nil
}

func (f *fakeController) StopScan() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	was := f.scanning
	f.scanning = false
	return was
}

func (f *fakeController) ProbeSpecificURL(_ context.Context, rawURL string) (*device.Descriptor, error) {
	if rawURL != "192.168.1.20" {
		return nil, errors.New("not an appliance")
	}
	return &device.Descriptor{
		ID:      "abc123",
		Name:    "Studio A",
		Address: device.NewAddress("192.168.1.20", 8000),
		Source:  device.SourceHostname,
	}, nil
}

func (f *fakeController) MeshStatus(context.Context) mesh.Status {
	return mesh.Status{Installed: true, Running: true, LoggedIn: true, SelfIP: "100.64.0.1"}
}

func (f *fakeController) FindMeshDevices(context.Context) ([]device.Descriptor, error) {
	return []device.Descriptor{}, nil
}

// wireMessage decodes any server message
type wireMessage struct {
	Type    string          `json:"type"`
	Command string          `json:"command"`
	ID      string          `json:"id"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Event   json.RawMessage `json:"event"`
}

func newTestServer(t *testing.T) (*Server, *fakeController, *httptest.Server) {
	t.Helper()
	ctrl := &fakeController{}
	hub := NewHub()
	srv := New(&Config{}, ctrl, hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, ctrl, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req Request) wireMessage {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	return readMessage(t, conn)
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wireMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.GetActiveConnections() < n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", srv.GetActiveConnections(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartAndStopScan(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)

	resp := roundTrip(t, conn, Request{Command: CommandStartScan, ID: "1"})
	if resp.Type != TypeResult || resp.Command != CommandStartScan || resp.ID != "1" {
		t.Fatalf("start-scan reply = %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Command: CommandStartScan})
	if resp.Type != TypeError || resp.Error != discovery.ErrScanInProgress.Error() {
		t.Errorf("second start-scan reply = %+v, want scan in progress error", resp)
	}

	resp = roundTrip(t, conn, Request{Command: CommandStopScan})
	if resp.Type != TypeResult || string(resp.Data) != `{"stopped":true}` {
		t.Errorf("stop-scan reply = %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Command: CommandStopScan})
	if string(resp.Data) != `{"stopped":false}` {
		t.Errorf("idle stop-scan data = %s", resp.Data)
	}
}

func TestProbeURL(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)

	resp := roundTrip(t, conn, Request{Command: CommandProbeURL, URL: "192.168.1.20"})
	if resp.Type != TypeResult {
		t.Fatalf("probe-url reply = %+v", resp)
	}
	var d device.Descriptor
	if err := json.Unmarshal(resp.Data, &d); err != nil {
		t.Fatalf("Unmarshal(data) error = %v", err)
	}
	if d.ID != "abc123" || d.Address.URL != "http://192.168.1.20:8000" {
		t.Errorf("probe-url device = %+v", d)
	}

	resp = roundTrip(t, conn, Request{Command: CommandProbeURL, URL: "10.0.0.1"})
	if resp.Type != TypeError || resp.Error != "not an appliance" {
		t.Errorf("failed probe-url reply = %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Command: CommandProbeURL})
	if resp.Type != TypeError || resp.Error != "missing url" {
		t.Errorf("probe-url without url reply = %+v", resp)
	}
}

func TestMeshCommands(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)

	resp := roundTrip(t, conn, Request{Command: CommandGetMeshStatus})
	if resp.Type != TypeResult {
		t.Fatalf("get-mesh-status reply = %+v", resp)
	}
	var status mesh.Status
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("Unmarshal(data) error = %v", err)
	}
	if !status.Usable() || status.SelfIP != "100.64.0.1" {
		t.Errorf("status = %+v", status)
	}

	resp = roundTrip(t, conn, Request{Command: CommandFindMeshDevices})
	if resp.Type != TypeResult {
		t.Errorf("find-mesh-devices reply = %+v", resp)
	}
}

func TestBadRequests(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)

	resp := roundTrip(t, conn, Request{Command: "reboot"})
	if resp.Type != TypeError || !strings.Contains(resp.Error, "unknown command") {
		t.Errorf("unknown command reply = %+v", resp)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	resp = readMessage(t, conn)
	if resp.Type != TypeError || !strings.Contains(resp.Error, "invalid request") {
		t.Errorf("invalid JSON reply = %+v", resp)
	}
}

func TestEventsBroadcast(t *testing.T) {
	srv, _, ts := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)
	waitForClients(t, srv, 2)

	d := device.Descriptor{ID: "abc123", Address: device.NewAddress("192.168.1.20", 8000), Source: device.SourceSubnetProbe}
	srv.hub.Emit(discovery.Event{Type: discovery.EventDeviceFound, Device: &d})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Type != TypeEvent {
			t.Fatalf("message type = %q, want event", msg.Type)
		}
		var e struct {
			Type   string            `json:"type"`
			Device device.Descriptor `json:"device"`
		}
		if err := json.Unmarshal(msg.Event, &e); err != nil {
			t.Fatalf("Unmarshal(event) error = %v", err)
		}
		if e.Type != "device-found" || e.Device.ID != "abc123" {
			t.Errorf("event = %+v", e)
		}
	}
}

func TestHealthz(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", resp.StatusCode, body)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	srv, ctrl, ts := newTestServer(t)
	conn := dial(t, ts)
	waitForClients(t, srv, 1)

	roundTrip(t, conn, Request{Command: CommandStartScan})

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	ctrl.mu.Lock()
	scanning := ctrl.scanning
	ctrl.mu.Unlock()
	if scanning {
		t.Error("Shutdown() should stop the running scan")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection should be closed after shutdown")
	}
	if n := srv.GetActiveConnections(); n != 0 {
		t.Errorf("active connections = %d, want 0", n)
	}
}
