package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/mesh"
)

// DefaultAddr is the loopback address the server listens on
const DefaultAddr = "127.0.0.1:8765"

// Controller is the discovery surface exposed to clients.
type Controller interface {
	StartScan(ctx context.Context) error
	StopScan() bool
	ProbeSpecificURL(ctx context.Context, rawURL string) (*device.Descriptor, error)
	MeshStatus(ctx context.Context) mesh.Status
	FindMeshDevices(ctx context.Context) ([]device.Descriptor, error)
}

// Config holds the server configuration
type Config struct {
	Addr string
}

// Server is the WebSocket IPC server
type Server struct {
	config   *Config
	ctrl     Controller
	hub      *Hub
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	// baseCtx outlives individual connections; scans started by a client
	// keep running after it disconnects
	baseCtx    context.Context
	baseCancel context.CancelFunc

	wg sync.WaitGroup
}

// New creates a server. hub must be the event sink the controller emits to.
func New(config *Config, ctrl Controller, hub *Hub) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())

	s := &Server{
		config:     config,
		ctrl:       ctrl,
		hub:        hub,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"ok","clients":%d}`, s.hub.Count())
	})
	return mux
}

// Start listens and serves until SIGINT/SIGTERM or a serve error.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener

	logging.Info("IPC server listening", zap.String("addr", listener.Addr().String()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := newClient(conn)
	s.hub.add(c)
	logging.LogConnection(c.remoteAddr, "connection_accepted")

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		defer func() {
			s.hub.remove(c)
			logging.LogConnection(c.remoteAddr, "connection_closed")
		}()
		c.readPump(s.baseCtx, s)
	}()
}

// Shutdown stops any running scan, closes all clients and stops serving.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.ctrl.StopScan() {
		logging.Info("Cancelled running scan")
	}
	s.baseCancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.hub.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-shutdownCtx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// GetActiveConnections returns the number of connected clients
func (s *Server) GetActiveConnections() int {
	return s.hub.Count()
}
