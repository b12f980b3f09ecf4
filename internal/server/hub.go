package server

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/r58studio/devfinder/internal/discovery"
	"github.com/r58studio/devfinder/internal/logging"
)

// Hub tracks connected clients and broadcasts scan events to them. It
// implements discovery.EventSink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Emit broadcasts e to every client.
func (h *Hub) Emit(e discovery.Event) {
	data, err := json.Marshal(EventMessage{Type: TypeEvent, Event: e})
	if err != nil {
		logging.Error("Failed to marshal event", zap.String("event", string(e.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(data)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
