package discovery

import (
	"encoding/json"
	"sync"

	"github.com/r58studio/devfinder/internal/device"
)

// EventType identifies a scan event.
type EventType string

const (
	EventStarted        EventType = "started"
	EventPhase          EventType = "phase"
	EventScanningSubnet EventType = "scanning-subnet"
	EventSubnetProgress EventType = "subnet-progress"
	EventDeviceFound    EventType = "device-found"
	EventComplete       EventType = "complete"
)

// Event is a single scan notification. Only the fields relevant to Type
// are set.
type Event struct {
	Type      EventType           `json:"type"`
	Phase     Phase               `json:"phase,omitempty"`
	Message   string              `json:"message,omitempty"`
	Subnet    string              `json:"subnet,omitempty"`
	Probed    int                 `json:"probed,omitempty"`
	Total     int                 `json:"total,omitempty"`
	Device    *device.Descriptor  `json:"device,omitempty"`
	Devices   []device.Descriptor `json:"devices,omitempty"`
	Cancelled bool                `json:"cancelled,omitempty"`
}

// MarshalJSON always includes the device list and cancelled flag on
// complete events.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	if e.Type != EventComplete {
		return json.Marshal(plain(e))
	}

	devices := e.Devices
	if devices == nil {
		devices = []device.Descriptor{}
	}
	return json.Marshal(struct {
		Type      EventType           `json:"type"`
		Devices   []device.Descriptor `json:"devices"`
		Cancelled bool                `json:"cancelled"`
	}{e.Type, devices, e.Cancelled})
}

// EventSink receives scan events.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

type nopSink struct{}

func (nopSink) Emit(Event) {}

// NopSink discards events.
var NopSink EventSink = nopSink{}

// lockedSink serialises calls into a sink that need not be goroutine safe.
type lockedSink struct {
	mu   sync.Mutex
	sink EventSink
}

func (l *lockedSink) Emit(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink.Emit(e)
}

// ChannelSink delivers events on a channel. Events are dropped rather than
// blocking the scan when the channel is full.
type ChannelSink chan Event

func (c ChannelSink) Emit(e Event) {
	select {
	case c <- e:
	default:
	}
}
