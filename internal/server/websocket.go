package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/r58studio/devfinder/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outgoing messages buffered per client before events are dropped
	sendBuffer = 64
)

var errMissingURL = errors.New("missing url")

// client is one WebSocket connection.
type client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// enqueue queues data without blocking. Messages for a client that cannot
// keep up are dropped.
func (c *client) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		logging.Warn("Client send buffer full, dropping message",
			zap.String("remote_addr", c.remoteAddr),
		)
	}
}

func (c *client) reply(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error("Failed to marshal response",
			zap.String("command", resp.Command),
			zap.Error(err),
		)
		data, _ = json.Marshal(Response{Type: TypeError, Command: resp.Command, ID: resp.ID, Error: "internal error"})
	}
	c.enqueue(data)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump sends queued messages and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug("Write failed", zap.String("remote_addr", c.remoteAddr), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads commands until the connection closes. Each command runs
// in its own goroutine so slow probes do not block stop-scan.
func (c *client) readPump(ctx context.Context, s *Server) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Connection closed unexpectedly",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.reply(errorResponse(Request{}, fmt.Errorf("unsupported message type %d", msgType)))
			continue
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(errorResponse(Request{}, fmt.Errorf("invalid request: %w", err)))
			continue
		}

		logging.LogCommand(c.remoteAddr, req.Command)

		wg.Add(1)
		go func() {
			defer wg.Done()
			c.reply(s.dispatch(ctx, req))
		}()
	}
}

// dispatch executes one command and builds its reply.
func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Command {
	case CommandStartScan:
		if err := s.ctrl.StartScan(s.baseCtx); err != nil {
			return errorResponse(req, err)
		}
		return resultResponse(req, map[string]bool{"started": true})

	case CommandStopScan:
		return resultResponse(req, map[string]bool{"stopped": s.ctrl.StopScan()})

	case CommandProbeURL:
		if req.URL == "" {
			return errorResponse(req, errMissingURL)
		}
		d, err := s.ctrl.ProbeSpecificURL(ctx, req.URL)
		if err != nil {
			return errorResponse(req, err)
		}
		return resultResponse(req, d)

	case CommandGetMeshStatus:
		return resultResponse(req, s.ctrl.MeshStatus(ctx))

	case CommandFindMeshDevices:
		devices, err := s.ctrl.FindMeshDevices(ctx)
		if err != nil {
			return errorResponse(req, err)
		}
		return resultResponse(req, devices)

	default:
		return errorResponse(req, fmt.Errorf("unknown command %q", req.Command))
	}
}
