package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/r58studio/devfinder/internal/device"
)

// ErrScanInProgress is returned when a scan is started while another runs.
var ErrScanInProgress = errors.New("scan already in progress")

// State is the lifecycle state of a scan session.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateComplete  State = "complete"
	StateCancelled State = "cancelled"
)

// Phase is one discovery strategy.
type Phase string

const (
	PhaseMesh     Phase = "mesh"
	PhaseHostname Phase = "hostname"
	PhaseSubnet   Phase = "subnet"
)

// Result is the outcome of a finished scan.
type Result struct {
	Devices   []device.Descriptor `json:"devices"`
	Cancelled bool                `json:"cancelled"`
	StartedAt time.Time           `json:"startedAt"`
	Duration  time.Duration       `json:"duration"`
}

// Session is one scan from start to completion or cancellation. It is
// created and mutated only by the Orchestrator.
type Session struct {
	mu        sync.Mutex
	state     State
	phase     Phase
	startedAt time.Time
	result    Result

	registry *Registry
	cancel   context.CancelFunc
	done     chan struct{}
}

func newSession(registry *Registry, cancel context.CancelFunc, now time.Time) *Session {
	return &Session{
		state:     StateScanning,
		startedAt: now,
		registry:  registry,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Phase returns the running phase, empty once the session has ended.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Devices returns the devices registered so far.
func (s *Session) Devices() []device.Descriptor {
	if s.State() != StateScanning {
		return s.Result().Devices
	}
	return s.registry.Snapshot()
}

// Result returns the final result. It is only meaningful after Done is
// closed.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) active() bool {
	return s.State() == StateScanning
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *Session) complete(result Result) {
	s.mu.Lock()
	s.result = result
	s.phase = ""
	if result.Cancelled {
		s.state = StateCancelled
	} else {
		s.state = StateComplete
	}
	s.mu.Unlock()
}

// close releases the session context and wakes waiters.
func (s *Session) close() {
	s.cancel()
	close(s.done)
}
