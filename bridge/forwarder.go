package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/runner/event"
)

// DefaultNames is the set of events forwarded when WithNames is not given.
var DefaultNames = []event.Name{
	event.LifecycleExpired,
	event.LocationUpdate,
	event.LocationStateChange,
	event.RunStarted,
	event.RunStopped,
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithCodec sets the frame codec. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(f *Forwarder) { f.codec = c }
}

// WithNames restricts forwarding to the given event names.
func WithNames(names ...event.Name) Option {
	return func(f *Forwarder) { f.names = names }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Forwarder) { f.logger = l }
}

// Stats counts forwarded and failed frames.
type Stats struct {
	Forwarded int64 `json:"forwarded"`
	Failed    int64 `json:"failed"`
}

// Forwarder subscribes to bus events and writes them to a Sink.
type Forwarder struct {
	bus    *event.Bus
	sink   Sink
	codec  Codec
	names  []event.Name
	logger *slog.Logger

	mu     sync.Mutex
	unsubs []func()

	forwarded atomic.Int64
	failed    atomic.Int64
}

// NewForwarder creates a Forwarder. Call Start to begin forwarding.
func NewForwarder(bus *event.Bus, sink Sink, opts ...Option) *Forwarder {
	f := &Forwarder{
		bus:    bus,
		sink:   sink,
		codec:  &JSONCodec{},
		names:  DefaultNames,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Start subscribes to every configured name. Calling Start twice is a
// no-op.
func (f *Forwarder) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unsubs != nil {
		return
	}
	f.unsubs = make([]func(), 0, len(f.names))
	for _, name := range f.names {
		f.unsubs = append(f.unsubs, f.bus.Subscribe(name, f.forward))
	}
}

// Close removes the forwarder's subscriptions.
func (f *Forwarder) Close() {
	f.mu.Lock()
	unsubs := f.unsubs
	f.unsubs = nil
	f.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Stats returns forwarding counters.
func (f *Forwarder) Stats() Stats {
	return Stats{Forwarded: f.forwarded.Load(), Failed: f.failed.Load()}
}

func (f *Forwarder) forward(ctx context.Context, evt *event.Event) {
	data, err := f.codec.Encode(NewEventFrame(evt))
	if err != nil {
		f.failed.Add(1)
		f.logger.Warn("bridge: encode frame",
			slog.String("event", string(evt.Name)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := f.sink.Send(ctx, string(evt.Name), data); err != nil {
		f.failed.Add(1)
		f.logger.Warn("bridge: send frame",
			slog.String("event", string(evt.Name)),
			slog.String("codec", f.codec.Name()),
			slog.String("error", err.Error()),
		)
		return
	}
	f.forwarded.Add(1)
}
