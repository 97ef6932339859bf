package sim

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/runner/platform"
)

// Driver runs each registered task on its own goroutine, the way a host
// runs a long process on a dedicated queue. The registration stays in
// place after the task returns until Deregister is called.
type Driver struct {
	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	last        platform.Registration
	registerErr error
	logger      *slog.Logger

	registers   atomic.Int32
	deregisters atomic.Int32
}

var _ platform.Registrar = (*Driver)(nil)

// NewDriver creates an idle driver.
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{logger: logger}
}

// FailRegistrations makes every following Register return err. Pass nil
// to restore normal behaviour.
func (d *Driver) FailRegistrations(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registerErr = err
}

// Register starts reg.Task on a new goroutine.
func (d *Driver) Register(ctx context.Context, reg platform.Registration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.registerErr != nil {
		return d.registerErr
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	d.running = true
	d.cancel = cancel
	d.done = done
	d.last = reg
	d.registers.Add(1)

	go func() {
		defer close(done)
		if err := reg.Task(runCtx); err != nil {
			d.logger.Warn("simulated task returned error",
				slog.String("name", reg.Name),
				slog.String("error", err.Error()),
			)
		}
	}()

	d.logger.Debug("simulated task registered", slog.String("name", reg.Name))
	return nil
}

// Deregister cancels the running task's context. It does not wait for
// the task to return, since the task itself may be the caller.
func (d *Driver) Deregister(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deregisters.Add(1)
	if !d.running {
		return nil
	}
	d.cancel()
	d.running = false
	return nil
}

// IsNativeRunning reports whether a registration is in place.
func (d *Driver) IsNativeRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Done returns a channel closed when the most recently registered task
// returns, or nil if nothing was registered.
func (d *Driver) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// LastRegistration returns the most recent registration.
func (d *Driver) LastRegistration() platform.Registration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Registers returns the number of successful Register calls.
func (d *Driver) Registers() int { return int(d.registers.Load()) }

// Deregisters returns the number of Deregister calls.
func (d *Driver) Deregisters() int { return int(d.deregisters.Load()) }
