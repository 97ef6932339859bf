// Package event provides the in-process publish/subscribe bus that
// carries location samples, watch-state changes and lifecycle
// notifications to the host application.
package event

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/runner/id"
)

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine, in subscription order.
type Handler func(ctx context.Context, evt *Event)

type subscription struct {
	id      id.SubscriptionID
	handler Handler
}

// Bus fans events out to subscribers by name. It is safe for concurrent
// use. A handler that panics is logged and skipped; the remaining
// subscribers still receive the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Name][]subscription
	logger *slog.Logger

	published atomic.Int64
	delivered atomic.Int64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[Name][]subscription),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for name and returns a function that
// removes it. The returned function is idempotent.
func (b *Bus) Subscribe(name Name, handler Handler) (unsubscribe func()) {
	sub := subscription{id: id.NewSubscriptionID(), handler: handler}

	b.mu.Lock()
	b.subs[name] = append(b.subs[name], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, sub.id) })
	}
}

// UnsubscribeAll drops every handler registered for name.
func (b *Bus) UnsubscribeAll(name Name) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, name)
}

// SubscriberCount returns the number of handlers registered for name.
func (b *Bus) SubscriberCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Publish delivers payload to every handler subscribed to name at the
// moment of the call. Handlers added or removed during delivery do not
// affect this event.
func (b *Bus) Publish(ctx context.Context, name Name, payload any) *Event {
	evt := &Event{
		ID:        id.NewEventID(),
		Name:      name,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	b.mu.RLock()
	snapshot := make([]subscription, len(b.subs[name]))
	copy(snapshot, b.subs[name])
	b.mu.RUnlock()

	b.published.Add(1)
	for _, sub := range snapshot {
		b.deliver(ctx, sub, evt)
	}

	return evt
}

// Stats returns bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	subs := 0
	for _, s := range b.subs {
		subs += len(s)
	}
	b.mu.RUnlock()

	return Stats{
		Subscribers: subs,
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
	}
}

// Stats holds bus counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Delivered   int64 `json:"delivered"`
}

func (b *Bus) deliver(ctx context.Context, sub subscription, evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("event", string(evt.Name)),
				slog.String("subscription_id", sub.id.String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	sub.handler(ctx, evt)
	b.delivered.Add(1)
}

func (b *Bus) remove(name Name, subID id.SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, s := range subs {
		if s.id.String() == subID.String() {
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, name)
			} else {
				b.subs[name] = next
			}
			return
		}
	}
}
