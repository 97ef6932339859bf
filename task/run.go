package task

import (
	"context"
	"sync"

	"github.com/xraph/runner/event"
)

// resolver is the completion signal of a run. Resolving it more than
// once has no further effect.
type resolver struct {
	once sync.Once
	ch   chan struct{}
}

func newResolver() *resolver {
	return &resolver{ch: make(chan struct{})}
}

// resolve closes the signal and reports whether this call did it.
func (r *resolver) resolve() bool {
	resolved := false
	r.once.Do(func() {
		close(r.ch)
		resolved = true
	})
	return resolved
}

// Run is the handle a Body receives for its run.
type Run struct {
	desc RunDescriptor
	bus  *event.Bus

	ctx    context.Context
	cancel context.CancelFunc
	res    *resolver

	mu         sync.Mutex
	unsubs     []func()
	registered bool
	stopped    bool
}

func newRun(desc RunDescriptor, bus *event.Bus) *Run {
	ctx, cancel := context.WithCancel(context.Background())
	return &Run{
		desc:   desc,
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
		res:    newResolver(),
	}
}

// Descriptor returns the run's identity.
func (r *Run) Descriptor() RunDescriptor { return r.desc }

// Done is closed when the run is stopped.
func (r *Run) Done() <-chan struct{} { return r.res.ch }

// Subscribe registers handler on the bus for the lifetime of this run.
// The subscription is dropped when the run stops.
func (r *Run) Subscribe(name event.Name, handler event.Handler) func() {
	unsub := r.bus.Subscribe(name, handler)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		unsub()
		return func() {}
	}
	r.unsubs = append(r.unsubs, unsub)
	return unsub
}

// finish resolves the run, cancels the body context and drops run-scoped
// subscriptions. It reports whether the host registration was completed
// and so needs tearing down.
func (r *Run) finish() (registered bool) {
	r.res.resolve()
	r.cancel()

	r.mu.Lock()
	r.stopped = true
	unsubs := r.unsubs
	r.unsubs = nil
	registered = r.registered
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	return registered
}

// markRegistered records that the host accepted the registration. It
// reports whether the run was already finished, in which case the caller
// owns the teardown.
func (r *Run) markRegistered() (alreadyStopped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = true
	return r.stopped
}
