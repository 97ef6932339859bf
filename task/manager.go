package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/xraph/runner"
	"github.com/xraph/runner/event"
	"github.com/xraph/runner/id"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/platform"
)

// Manager owns the single task slot. It is safe for concurrent use.
type Manager struct {
	platform platform.Platform
	bus      *event.Bus
	gate     AccessGate
	emitter  Emitter
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	seq     int
	current *Run
}

// Option configures a Manager.
type Option func(*Manager)

// WithGate sets the permission gate. It is consulted before starting on
// platforms that require access, and asked to request access again when
// a registration fails.
func WithGate(g AccessGate) Option {
	return func(m *Manager) { m.gate = g }
}

// WithEmitter sets the receiver of lifecycle notifications.
func WithEmitter(e Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a manager in the Stopped state.
func NewManager(p platform.Platform, bus *event.Bus, opts ...Option) *Manager {
	m := &Manager{
		platform: p,
		bus:      bus,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsRunning reports whether a run is registered and active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Running
}

// State returns a snapshot of the slot.
func (m *Manager) State() RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := RunState{State: m.state, Sequence: m.seq}
	if m.current != nil {
		desc := m.current.desc
		rs.Run = &desc
	}
	return rs
}

// Start launches body as the background task. It returns nil without
// doing anything while another run is starting, running or stopping.
//
// On a platform that requires location access, missing access triggers a
// permission request and Start returns a *permission.DeniedError without
// registering. A failed registration leaves the slot Stopped and returns
// an error wrapping runner.ErrRegistrationFailed.
func (m *Manager) Start(ctx context.Context, body Body, opts Options) error {
	_, err := m.TryStart(ctx, body, opts)
	return err
}

// TryStart is Start that also reports whether this call moved the slot to
// Running. It is false for a busy slot, a refused or failed start, and a
// run stopped before it was registered.
func (m *Manager) TryStart(ctx context.Context, body Body, opts Options) (bool, error) {
	if err := m.precheck(body, opts); err != nil {
		// Failed calls still consume a sequence number.
		m.mu.Lock()
		m.seq++
		m.mu.Unlock()
		return false, err
	}

	m.mu.Lock()
	if m.state != Stopped {
		state := m.state
		m.mu.Unlock()
		m.logger.Warn("task start ignored: slot busy", slog.String("state", state.String()))
		return false, nil
	}
	m.seq++
	desc := RunDescriptor{
		ID:          id.NewRunID(),
		Sequence:    m.seq,
		Name:        opts.Title + strconv.Itoa(m.seq),
		Title:       opts.Title,
		Description: opts.Description,
		Delay:       opts.Delay,
	}
	// The run is current from here on so a Stop issued while Starting
	// finishes it.
	run := newRun(desc, m.bus)
	m.current = run
	m.state = Starting
	m.mu.Unlock()

	if m.platform.RequiresAccess() && m.gate != nil {
		if res, ok := m.hasAccess(ctx); !ok {
			if req, err := m.gate.Request(ctx); err == nil {
				res = req
			}
			m.abandon(run)
			m.logger.Warn("task not started: location access missing",
				slog.String("name", desc.Name),
			)
			return false, &permission.DeniedError{Result: res}
		}
	}

	select {
	case <-run.Done():
		m.logger.Info("task start abandoned: stopped while starting",
			slog.String("name", desc.Name),
		)
		return false, nil
	default:
	}

	reg := platform.Registration{
		Name:        desc.Name,
		Title:       desc.Title,
		Description: desc.Description,
		Task:        m.bind(run, body),
	}
	if err := m.platform.Register(ctx, reg); err != nil {
		return false, m.registrationFailed(ctx, run, err)
	}

	if run.markRegistered() {
		// Stopped while registering; the stop skipped the host teardown.
		if err := m.platform.Deregister(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("deregister after early stop failed", slog.String("error", err.Error()))
		}
		return false, nil
	}

	m.mu.Lock()
	if m.current != run || m.state != Starting {
		m.mu.Unlock()
		return false, nil
	}
	m.state = Running
	m.mu.Unlock()

	m.logger.Info("task started",
		slog.String("run_id", desc.ID.String()),
		slog.String("name", desc.Name),
		slog.String("platform", string(m.platform.Kind())),
	)
	if m.emitter != nil {
		m.emitter.EmitRunStarted(ctx, desc)
	}
	m.bus.Publish(ctx, event.RunStarted, runPayload(desc))
	return true, nil
}

// Stop ends the current run. It is a no-op when nothing is running or a
// stop is already in progress.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	run := m.current
	m.mu.Unlock()

	if run == nil {
		m.logger.Debug("task stop ignored: not running")
		return nil
	}
	return m.stop(ctx, run)
}

// Expire publishes a lifecycle-expired event for the current run. The
// host calls it when the OS is about to reclaim background time.
func (m *Manager) Expire(ctx context.Context) {
	var payload event.RunPayload
	if rs := m.State(); rs.Run != nil {
		payload = runPayload(*rs.Run)
	}
	m.logger.Warn("background execution expiring", slog.String("name", payload.Name))
	m.bus.Publish(ctx, event.LifecycleExpired, payload)
}

// stop tears run down if it is still the current run.
func (m *Manager) stop(ctx context.Context, run *Run) error {
	m.mu.Lock()
	if m.current != run || m.state == Stopping || m.state == Stopped {
		m.mu.Unlock()
		return nil
	}
	m.state = Stopping
	m.mu.Unlock()

	var err error
	if run.finish() {
		if derr := m.platform.Deregister(ctx); derr != nil {
			m.logger.Error("background deregistration failed",
				slog.String("name", run.desc.Name),
				slog.String("error", derr.Error()),
			)
			err = derr
		}
	}

	m.mu.Lock()
	m.current = nil
	m.state = Stopped
	m.mu.Unlock()

	m.logger.Info("task stopped",
		slog.String("run_id", run.desc.ID.String()),
		slog.String("name", run.desc.Name),
	)
	if m.emitter != nil {
		m.emitter.EmitRunStopped(ctx, run.desc)
	}
	m.bus.Publish(ctx, event.RunStopped, runPayload(run.desc))
	return err
}

func (m *Manager) registrationFailed(ctx context.Context, run *Run, err error) error {
	run.finish()

	m.mu.Lock()
	if m.current == run {
		m.current = nil
		m.state = Stopped
	}
	m.mu.Unlock()

	m.logger.Error("background registration failed",
		slog.String("name", run.desc.Name),
		slog.String("error", err.Error()),
	)
	if m.gate != nil {
		if _, rerr := m.gate.Request(ctx); rerr != nil {
			m.logger.Warn("permission request after failed registration failed",
				slog.String("error", rerr.Error()),
			)
		}
	}
	if m.emitter != nil {
		m.emitter.EmitRegistrationFailed(ctx, run.desc, err)
	}
	return fmt.Errorf("%w: %s: %w", runner.ErrRegistrationFailed, run.desc.Name, err)
}

// bind wraps body into the closure the host runs. The closure returns
// when the body finishes or the run is stopped, whichever comes first.
func (m *Manager) bind(run *Run, body Body) platform.BoundTask {
	return func(hostCtx context.Context) error {
		result := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("task body panicked",
						slog.String("name", run.desc.Name),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					result <- fmt.Errorf("panic in task %s: %v", run.desc.Name, r)
				}
			}()
			result <- body(run.ctx, run)
		}()

		select {
		case err := <-result:
			if err != nil {
				m.logger.Warn("task body returned error",
					slog.String("name", run.desc.Name),
					slog.String("error", err.Error()),
				)
			}
			if serr := m.stop(context.WithoutCancel(hostCtx), run); serr != nil {
				m.logger.Warn("stop after task finished failed", slog.String("error", serr.Error()))
			}
			return err
		case <-run.Done():
			return nil
		case <-hostCtx.Done():
			select {
			case <-run.Done():
				return nil
			default:
			}
			m.logger.Warn("host ended background task", slog.String("name", run.desc.Name))
			_ = m.stop(context.WithoutCancel(hostCtx), run)
			return hostCtx.Err()
		}
	}
}

func (m *Manager) precheck(body Body, opts Options) error {
	if body == nil {
		return runner.ErrNilTask
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if m.platform == nil {
		return runner.ErrNoPlatform
	}
	return nil
}

// abandon drops a run that never reached registration.
func (m *Manager) abandon(run *Run) {
	run.finish()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == run {
		m.current = nil
		m.state = Stopped
	}
}

func (m *Manager) hasAccess(ctx context.Context) (permission.Result, bool) {
	res, err := m.gate.Check(ctx)
	if err != nil {
		m.logger.Warn("location access check failed", slog.String("error", err.Error()))
		return res, false
	}
	return res, res.FineGranted
}

func runPayload(desc RunDescriptor) event.RunPayload {
	return event.RunPayload{RunID: desc.ID.String(), Name: desc.Name, Title: desc.Title}
}
