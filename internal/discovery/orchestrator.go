package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/hostname"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/mesh"
	"github.com/r58studio/devfinder/internal/probe"
	"github.com/r58studio/devfinder/internal/subnet"
)

// MeshClient is the part of the mesh client used by scans.
type MeshClient interface {
	GetStatus(ctx context.Context) mesh.Status
	ProbeForDevices(ctx context.Context) ([]device.Descriptor, error)
}

// HostnameProber runs the hostname phase.
type HostnameProber interface {
	Discover(ctx context.Context, onFound func(device.Descriptor)) []device.Descriptor
}

// SubnetScanner sweeps one subnet.
type SubnetScanner interface {
	ScanSubnet(ctx context.Context, subnet netip.Prefix, onFound func(device.Descriptor)) ([]device.Descriptor, error)
}

// NetworkLister returns the local networks to sweep.
type NetworkLister func() ([]subnet.Network, error)

// URLProber validates a manually entered URL.
type URLProber func(ctx context.Context, rawURL string, timeout time.Duration) (*device.Descriptor, error)

// Options configures which phases run and how.
type Options struct {
	EnableMesh     bool
	EnableHostname bool
	EnableSubnet   bool

	Mesh     mesh.Config
	Hostname hostname.Config

	SubnetPort    int
	SubnetTimeout time.Duration

	// ManualTimeout bounds ProbeSpecificURL
	ManualTimeout time.Duration
}

// DefaultOptions enables every phase with standard settings.
func DefaultOptions() Options {
	return Options{
		EnableMesh:     true,
		EnableHostname: true,
		EnableSubnet:   true,
		Mesh:           mesh.DefaultConfig(),
		Hostname:       hostname.DefaultConfig(),
		SubnetPort:     probe.DefaultPort,
		SubnetTimeout:  probe.SubnetTimeout,
		ManualTimeout:  probe.DefaultTimeout,
	}
}

// Dependencies are the collaborators of an Orchestrator. Nil fields are
// built from Options.
type Dependencies struct {
	Mesh     MeshClient
	Hostname HostnameProber
	Subnet   SubnetScanner
	Networks NetworkLister
	ProbeURL URLProber
	Now      func() time.Time
}

// Orchestrator runs scans and owns the current Session.
type Orchestrator struct {
	opts Options
	deps Dependencies
	sink EventSink

	mu      sync.Mutex
	session *Session
}

// New creates an orchestrator with production collaborators.
func New(opts Options, sink EventSink) *Orchestrator {
	return NewWithDependencies(opts, Dependencies{}, sink)
}

// NewWithDependencies creates an orchestrator with injected collaborators.
func NewWithDependencies(opts Options, deps Dependencies, sink EventSink) *Orchestrator {
	if sink == nil {
		sink = NopSink
	}
	o := &Orchestrator{sink: &lockedSink{sink: sink}}

	if opts.ManualTimeout <= 0 {
		opts.ManualTimeout = probe.DefaultTimeout
	}

	if deps.Mesh == nil {
		deps.Mesh = mesh.NewClient(opts.Mesh)
	}
	if deps.Hostname == nil {
		deps.Hostname = hostname.NewProber(opts.Hostname)
	}
	if deps.Subnet == nil {
		scanner := subnet.NewScanner()
		if opts.SubnetPort > 0 {
			scanner.Port = opts.SubnetPort
		}
		if opts.SubnetTimeout > 0 {
			scanner.Timeout = opts.SubnetTimeout
		}
		scanner.OnProgress = o.reportProgress
		deps.Subnet = scanner
	}
	if deps.Networks == nil {
		deps.Networks = subnet.GetLocalNetworks
	}
	if deps.ProbeURL == nil {
		deps.ProbeURL = probe.NewProber().ProbeSpecific
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	o.opts = opts
	o.deps = deps
	return o
}

// reportProgress forwards sweep progress of the built-in scanner.
func (o *Orchestrator) reportProgress(p subnet.Progress) {
	logging.Debug("Subnet sweep progress",
		zap.String("subnet", p.Subnet.String()),
		zap.Int("probed", p.Probed),
		zap.Int("total", p.Total),
		zap.Int("found", p.Found),
	)
	o.sink.Emit(Event{Type: EventSubnetProgress, Subnet: p.Subnet.String(), Probed: p.Probed, Total: p.Total})
}

// Scan runs a scan to completion. Cancelling ctx stops the scan at the next
// batch or phase boundary and returns a cancelled result.
func (o *Orchestrator) Scan(ctx context.Context) (Result, error) {
	s, err := o.start(ctx)
	if err != nil {
		return Result{}, err
	}
	<-s.Done()
	return s.Result(), nil
}

// StartScan starts a scan in the background.
func (o *Orchestrator) StartScan(ctx context.Context) error {
	_, err := o.start(ctx)
	return err
}

// StopScan cancels the active scan. It returns false if none was running.
func (o *Orchestrator) StopScan() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil || !o.session.active() {
		return false
	}
	logging.Info("Stopping scan")
	o.session.cancel()
	return true
}

// Wait blocks until the current session, if any, has ended.
func (o *Orchestrator) Wait() {
	if s := o.Session(); s != nil {
		<-s.Done()
	}
}

// State returns the state of the current or most recent session.
func (o *Orchestrator) State() State {
	if s := o.Session(); s != nil {
		return s.State()
	}
	return StateIdle
}

// Session returns the current or most recent session, or nil.
func (o *Orchestrator) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// ProbeSpecificURL validates a manually entered URL. A device found while
// a scan is active is merged into that scan.
func (o *Orchestrator) ProbeSpecificURL(ctx context.Context, rawURL string) (*device.Descriptor, error) {
	d, err := o.deps.ProbeURL(ctx, rawURL, o.opts.ManualTimeout)
	if err != nil {
		return nil, err
	}

	if s := o.Session(); s != nil && s.active() {
		s.registry.Submit(*d)
	}
	return d, nil
}

// MeshStatus reports the local mesh VPN state.
func (o *Orchestrator) MeshStatus(ctx context.Context) mesh.Status {
	return o.deps.Mesh.GetStatus(ctx)
}

// FindMeshDevices probes mesh peers outside of a scan.
func (o *Orchestrator) FindMeshDevices(ctx context.Context) ([]device.Descriptor, error) {
	devices, err := o.deps.Mesh.ProbeForDevices(ctx)
	if err != nil {
		return nil, err
	}
	device.Rank(devices)
	return devices, nil
}

func (o *Orchestrator) start(ctx context.Context) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil && o.session.active() {
		return nil, ErrScanInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	s := newSession(NewRegistry(o.sink), cancel, o.deps.Now())
	o.session = s

	go o.run(ctx, s)
	return s, nil
}

// Phases returns the enabled phases in their fixed order
func (opts Options) Phases() []Phase {
	var phases []Phase
	if opts.EnableMesh {
		phases = append(phases, PhaseMesh)
	}
	if opts.EnableHostname {
		phases = append(phases, PhaseHostname)
	}
	if opts.EnableSubnet {
		phases = append(phases, PhaseSubnet)
	}
	return phases
}

var phaseMessages = map[Phase]string{
	PhaseMesh:     "Checking mesh VPN peers",
	PhaseHostname: "Checking known addresses and hostnames",
	PhaseSubnet:   "Scanning local networks",
}

func (o *Orchestrator) run(ctx context.Context, s *Session) {
	logging.Info("Scan started", zap.Int("phases", len(o.opts.Phases())))
	o.sink.Emit(Event{Type: EventStarted})

	for _, p := range o.opts.Phases() {
		if ctx.Err() != nil {
			break
		}
		s.setPhase(p)
		o.sink.Emit(Event{Type: EventPhase, Phase: p, Message: phaseMessages[p]})
		o.runPhase(ctx, s, p)
	}

	devices := s.registry.Close()
	device.Rank(devices)

	result := Result{
		Devices:   devices,
		Cancelled: ctx.Err() != nil,
		StartedAt: s.startedAt,
		Duration:  o.deps.Now().Sub(s.startedAt),
	}
	s.complete(result)

	logging.Info("Scan finished",
		zap.Int("devices", len(devices)),
		zap.Bool("cancelled", result.Cancelled),
		zap.Duration("duration", result.Duration),
	)
	o.sink.Emit(Event{Type: EventComplete, Devices: devices, Cancelled: result.Cancelled})
	s.close()
}

// runPhase runs one phase. Failures and panics end the phase only.
func (o *Orchestrator) runPhase(ctx context.Context, s *Session, p Phase) {
	start := o.deps.Now()
	logging.LogPhase(string(p), "started")

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Discovery phase panicked",
				zap.String("phase", string(p)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	var err error
	switch p {
	case PhaseMesh:
		err = o.runMesh(ctx, s)
	case PhaseHostname:
		o.deps.Hostname.Discover(ctx, s.registry.Submit)
	case PhaseSubnet:
		err = o.runSubnet(ctx, s)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn("Discovery phase failed", zap.String("phase", string(p)), zap.Error(err))
	}
	logging.LogPhase(string(p), "finished", zap.Duration("duration", o.deps.Now().Sub(start)))
}

func (o *Orchestrator) runMesh(ctx context.Context, s *Session) error {
	status := o.deps.Mesh.GetStatus(ctx)
	if !status.Usable() {
		logging.Info("Mesh VPN unavailable, skipping peers", zap.String("reason", status.Error))
		return nil
	}

	devices, err := o.deps.Mesh.ProbeForDevices(ctx)
	if err != nil {
		return fmt.Errorf("mesh probe failed: %w", err)
	}
	for _, d := range devices {
		s.registry.Submit(d)
	}
	return nil
}

func (o *Orchestrator) runSubnet(ctx context.Context, s *Session) error {
	networks, err := o.deps.Networks()
	if err != nil {
		return fmt.Errorf("failed to enumerate local networks: %w", err)
	}
	if len(networks) == 0 {
		logging.Info("No local networks to scan")
		return nil
	}

	for _, n := range networks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.sink.Emit(Event{Type: EventScanningSubnet, Subnet: n.Subnet.String(), Message: n.Interface})

		if _, err := o.deps.Subnet.ScanSubnet(ctx, n.Subnet, s.registry.Submit); err != nil {
			return err
		}
	}
	return nil
}
