// Package server exposes the discovery orchestrator over a local WebSocket.
//
// Clients connect to /ws and send JSON commands:
//
//	{"command": "start-scan"}
//	{"command": "stop-scan"}
//	{"command": "probe-url", "url": "192.168.1.20:8000"}
//	{"command": "get-mesh-status"}
//	{"command": "find-mesh-devices"}
//
// Every command gets exactly one reply, either
//
//	{"type": "result", "command": "...", "data": ...}
//	{"type": "error", "command": "...", "error": "..."}
//
// Scan events are broadcast to all connected clients as
//
//	{"type": "event", "event": {"type": "device-found", "device": {...}}}
//
// The server listens on loopback by default. Browser origins other than the
// server's own host are rejected during the upgrade.
//
// # Usage Example
//
//	hub := server.NewHub()
//	orch := discovery.New(discovery.DefaultOptions(), hub)
//	srv := server.New(&server.Config{Addr: "127.0.0.1:8765"}, orch, hub)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
package server
