package location

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/runner"
	"github.com/xraph/runner/event"
)

// Watcher owns the Idle/Monitoring state machine and the last forwarded
// sample. It is safe for concurrent use.
type Watcher struct {
	sensor  Sensor
	access  AccessChecker
	bus     *event.Bus
	emitter Emitter
	logger  *slog.Logger

	// op serialises Start and Stop so the sensor is never started twice.
	// Nothing holding it waits on the pump goroutine.
	op sync.Mutex

	mu       sync.Mutex
	state    State
	last     Sample
	stopPump context.CancelFunc
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// WithEmitter sets the receiver of state transitions.
func WithEmitter(e Emitter) Option {
	return func(w *Watcher) { w.emitter = e }
}

// WithAccess sets the access check consulted by Start. Without one the
// watcher assumes access is held.
func WithAccess(a AccessChecker) Option {
	return func(w *Watcher) { w.access = a }
}

// NewWatcher creates an Idle watcher that publishes onto bus.
func NewWatcher(sensor Sensor, bus *event.Bus, opts ...Option) *Watcher {
	w := &Watcher{
		sensor: sensor,
		bus:    bus,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current watch state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Last returns the last forwarded sample, {0,0} before the first one.
func (w *Watcher) Last() Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Start moves the watcher from Idle to Monitoring. It is a no-op, logged
// as a warning, when already Monitoring or when access is not held. The
// state only changes once the sensor has started.
func (w *Watcher) Start(ctx context.Context) error {
	w.op.Lock()

	if w.State() == Monitoring {
		w.op.Unlock()
		w.logger.Warn("location watch already monitoring")
		return nil
	}
	if w.access != nil && !w.access.Granted(ctx) {
		w.op.Unlock()
		w.logger.Warn("location watch not started: access not granted")
		return nil
	}
	if w.sensor == nil {
		w.op.Unlock()
		return runner.ErrNoSensor
	}

	if err := w.sensor.StartSampling(ctx); err != nil {
		w.op.Unlock()
		return fmt.Errorf("%w: start sampling: %w", runner.ErrSensorUnavailable, err)
	}

	pumpCtx, stop := context.WithCancel(context.WithoutCancel(ctx))

	w.mu.Lock()
	w.state = Monitoring
	w.last = Sample{}
	w.stopPump = stop
	w.mu.Unlock()

	if ch := w.sensor.Samples(); ch != nil {
		go w.pump(pumpCtx, ch)
	}
	w.op.Unlock()

	w.logger.Info("location watch started")
	w.transitioned(ctx, Idle, Monitoring)
	return nil
}

// Stop moves the watcher from Monitoring to Idle. It is a no-op, logged
// as a warning, when already Idle. A sensor that fails to stop is logged
// and the watcher still goes Idle. Stop does not wait for the push pump,
// so it may be called from a location-update handler; samples the pump
// still holds are dropped because the state is no longer Monitoring.
func (w *Watcher) Stop(ctx context.Context) error {
	w.op.Lock()

	w.mu.Lock()
	if w.state == Idle {
		w.mu.Unlock()
		w.op.Unlock()
		w.logger.Warn("location watch already idle")
		return nil
	}
	w.state = Idle
	stop := w.stopPump
	w.stopPump = nil
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
	if err := w.sensor.StopSampling(ctx); err != nil {
		w.logger.Warn("location sensor failed to stop",
			slog.String("error", err.Error()),
		)
	}
	w.op.Unlock()

	w.logger.Info("location watch stopped")
	w.transitioned(ctx, Monitoring, Idle)
	return nil
}

// OnSample forwards s as a location update when its coordinates differ
// from the last forwarded sample in either latitude or longitude. Samples
// that arrive while Idle are dropped. It reports whether s was forwarded.
func (w *Watcher) OnSample(ctx context.Context, s Sample) bool {
	w.mu.Lock()
	if w.state != Monitoring || s.SameCoordinates(w.last) {
		w.mu.Unlock()
		return false
	}
	w.last = s
	w.mu.Unlock()

	w.bus.Publish(ctx, event.LocationUpdate, event.LocationPayload{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Provider:  s.Provider,
	})
	return true
}

// Current returns one fresh reading from the sensor without touching the
// watch state.
func (w *Watcher) Current(ctx context.Context) (Sample, error) {
	if w.sensor == nil {
		return Sample{}, runner.ErrNoSensor
	}
	s, err := w.sensor.CurrentSample(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", runner.ErrSensorUnavailable, err)
	}
	return s, nil
}

// pump feeds pushed samples into OnSample. If the sensor closes its
// channel while monitoring, the watcher falls back to Idle.
func (w *Watcher) pump(ctx context.Context, ch <-chan Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				w.sensorLost(ctx)
				return
			}
			w.OnSample(ctx, s)
		}
	}
}

// sensorLost moves a watcher whose pump ended on its own to Idle and
// stops the sensor, so sampling holds only while Monitoring.
func (w *Watcher) sensorLost(ctx context.Context) {
	w.op.Lock()
	w.mu.Lock()
	if w.state != Monitoring || ctx.Err() != nil {
		w.mu.Unlock()
		w.op.Unlock()
		return
	}
	w.state = Idle
	stop := w.stopPump
	w.stopPump = nil
	w.mu.Unlock()
	stop()
	ctx = context.WithoutCancel(ctx)

	if err := w.sensor.StopSampling(ctx); err != nil {
		w.logger.Warn("location sensor failed to stop",
			slog.String("error", err.Error()),
		)
	}
	w.op.Unlock()

	w.logger.Warn("location sensor stopped delivering samples")
	w.bus.Publish(ctx, event.LocationUpdate, event.LocationPayload{
		Error: runner.ErrSensorUnavailable.Error(),
	})
	w.transitioned(ctx, Monitoring, Idle)
}

func (w *Watcher) transitioned(ctx context.Context, from, to State) {
	w.bus.Publish(ctx, event.LocationStateChange, event.StatePayload{
		From: from.String(),
		To:   to.String(),
	})
	if w.emitter != nil {
		w.emitter.EmitWatchStateChanged(ctx, from, to)
	}
}
