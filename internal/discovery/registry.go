package discovery

import (
	"sync"

	"go.uber.org/zap"

	"github.com/r58studio/devfinder/internal/device"
	"github.com/r58studio/devfinder/internal/logging"
)

// Merge reconciles a newly discovered descriptor with the entry already
// held for the same ID. It reports whether the registry entry changed.
//
//   - no existing entry: incoming is inserted
//   - incoming local, existing remote: incoming becomes primary, the remote
//     URL becomes the fallback and missing metadata is copied over
//   - incoming remote, existing local without fallback: the remote URL is
//     attached as fallback and missing metadata is copied over
//   - anything else: the existing entry wins unchanged
func Merge(existing *device.Descriptor, incoming device.Descriptor) (device.Descriptor, bool) {
	if existing == nil {
		return incoming, true
	}

	inClass := incoming.TransportClass()
	exClass := existing.TransportClass()

	switch {
	case inClass == device.ClassLocal && exClass == device.ClassRemote:
		merged := *incoming.Clone()
		merged.FallbackURL = existing.Address.URL
		fillMetadata(&merged, *existing)
		return merged, true

	case inClass == device.ClassRemote && exClass == device.ClassLocal && !existing.HasFallback():
		merged := *existing.Clone()
		merged.FallbackURL = incoming.Address.URL
		fillMetadata(&merged, incoming)
		return merged, true
	}

	return *existing, false
}

// fillMetadata copies name, platform and version from src where dst has
// none. An address-derived fallback name counts as none.
func fillMetadata(dst *device.Descriptor, src device.Descriptor) {
	if dst.Name == "" || dst.Name == device.FallbackName(dst.Address.Host) {
		if src.Name != "" && src.Name != device.FallbackName(src.Address.Host) {
			dst.Name = src.Name
		}
	}
	if dst.Platform == "" {
		dst.Platform = src.Platform
	}
	if dst.Version == "" {
		dst.Version = src.Version
	}
}

type submission struct {
	desc device.Descriptor
	ack  chan struct{}
}

// Registry is the per-session device index. All reads and writes happen on
// its owner goroutine; callers talk to it over channels.
type Registry struct {
	sink EventSink

	// owned by run
	index map[string]*device.Descriptor
	order []string

	submissions chan submission
	snapshots   chan chan []device.Descriptor
	quit        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

// NewRegistry starts a registry that reports device-found events to sink.
func NewRegistry(sink EventSink) *Registry {
	if sink == nil {
		sink = NopSink
	}
	r := &Registry{
		sink:        sink,
		index:       make(map[string]*device.Descriptor),
		submissions: make(chan submission),
		snapshots:   make(chan chan []device.Descriptor),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Registry) run() {
	defer close(r.done)
	for {
		select {
		case s := <-r.submissions:
			r.merge(s.desc)
			close(s.ack)
		case reply := <-r.snapshots:
			reply <- r.list()
		case <-r.quit:
			return
		}
	}
}

func (r *Registry) merge(incoming device.Descriptor) {
	if incoming.ID == "" {
		logging.Warn("Dropping descriptor without ID", zap.String("url", incoming.Address.URL))
		return
	}

	existing := r.index[incoming.ID]
	merged, changed := Merge(existing, incoming)
	if !changed {
		logging.Debug("Duplicate device ignored",
			zap.String("id", incoming.ID),
			zap.String("source", string(incoming.Source)),
		)
		return
	}

	if existing == nil {
		r.order = append(r.order, incoming.ID)
	}
	r.index[incoming.ID] = &merged

	logging.Info("Device registered",
		zap.String("id", merged.ID),
		zap.String("url", merged.Address.URL),
		zap.String("fallback", merged.FallbackURL),
		zap.Bool("update", existing != nil),
	)
	r.sink.Emit(Event{Type: EventDeviceFound, Device: merged.Clone()})
}

func (r *Registry) list() []device.Descriptor {
	out := make([]device.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.index[id].Clone())
	}
	return out
}

// Submit merges d and returns once the merge and any resulting event are
// done. Submissions after Close are dropped.
func (r *Registry) Submit(d device.Descriptor) {
	s := submission{desc: d, ack: make(chan struct{})}
	select {
	case r.submissions <- s:
		<-s.ack
	case <-r.done:
	}
}

// Snapshot returns the current devices in discovery order.
func (r *Registry) Snapshot() []device.Descriptor {
	reply := make(chan []device.Descriptor, 1)
	select {
	case r.snapshots <- reply:
		return <-reply
	case <-r.done:
		return r.list()
	}
}

// Close stops the owner goroutine and returns the final device list.
func (r *Registry) Close() []device.Descriptor {
	r.closeOnce.Do(func() { close(r.quit) })
	<-r.done
	return r.list()
}
