package server

import (
	"github.com/r58studio/devfinder/internal/discovery"
)

// Command names accepted from clients
const (
	CommandStartScan       = "start-scan"
	CommandStopScan        = "stop-scan"
	CommandProbeURL        = "probe-url"
	CommandGetMeshStatus   = "get-mesh-status"
	CommandFindMeshDevices = "find-mesh-devices"
)

// Message types sent to clients
const (
	TypeResult = "result"
	TypeError  = "error"
	TypeEvent  = "event"
)

// Request is a client command.
type Request struct {
	Command string `json:"command"`
	URL     string `json:"url,omitempty"`

	// ID is echoed back so clients can match replies
	ID string `json:"id,omitempty"`
}

// Response answers one Request.
type Response struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	ID      string `json:"id,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EventMessage wraps a broadcast scan event.
type EventMessage struct {
	Type  string          `json:"type"`
	Event discovery.Event `json:"event"`
}

func resultResponse(req Request, data any) Response {
	return Response{Type: TypeResult, Command: req.Command, ID: req.ID, Data: data}
}

func errorResponse(req Request, err error) Response {
	return Response{Type: TypeError, Command: req.Command, ID: req.ID, Error: err.Error()}
}
