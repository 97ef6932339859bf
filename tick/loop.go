package tick

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/xraph/runner/cadence"
	"github.com/xraph/runner/job"
	"github.com/xraph/runner/middleware"
)

// Func is invoked once per cycle with the number of ticks already
// completed. Returning cancel=true or a non-nil error ends the loop.
type Func func(ctx context.Context, progress int64) (cancel bool, err error)

// DoneFunc receives the final progress when a loop ends.
type DoneFunc func(progress int64)

// Loop starts and tracks tick loops. It is safe for concurrent use.
type Loop struct {
	jobs   *job.Registry
	mw     middleware.Middleware
	logger *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	wakers  map[job.Lease]context.CancelFunc
	stopped bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithRegistry shares an existing job registry with the loop.
func WithRegistry(r *job.Registry) Option {
	return func(l *Loop) { l.jobs = r }
}

// WithMiddleware sets the middleware applied around every tick.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(l *Loop) { l.mw = middleware.Chain(mws...) }
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a Loop with its own registry unless WithRegistry is given.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.Default(),
		wakers: make(map[job.Lease]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.jobs == nil {
		l.jobs = job.NewRegistry()
	}
	return l
}

// Registry returns the registry backing this loop.
func (l *Loop) Registry() *job.Registry { return l.jobs }

// Start runs onTick every delay until the job ends. See StartWithSchedule.
func (l *Loop) Start(ctx context.Context, name string, delay time.Duration, onTick Func, onDone DoneFunc) job.ID {
	return l.StartWithSchedule(ctx, name, cadence.Every(delay), onTick, onDone)
}

// StartWithSchedule creates a job and launches its loop. The wait before
// tick n is sched.Delay(n). Cancelling ctx ends the loop at the next
// boundary. onDone may be nil.
func (l *Loop) StartWithSchedule(ctx context.Context, name string, sched cadence.Schedule, onTick Func, onDone DoneFunc) job.ID {
	lease := l.jobs.Acquire()

	waitCtx, wake := context.WithCancel(ctx)

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		wake()
		l.jobs.Release(lease)
	} else {
		l.wakers[lease] = wake
		l.mu.Unlock()
	}

	l.wg.Add(1)
	go l.run(ctx, waitCtx, wake, lease, name, sched, onTick, onDone)

	return lease.ID
}

// Cancel marks the job dead and wakes its loop if it is waiting. The
// loop still calls its done callback. It reports whether the job was
// live.
func (l *Loop) Cancel(id job.ID) bool {
	ok := l.jobs.Cancel(id)
	l.wake(id)
	return ok
}

// CancelAll marks every job dead and wakes every waiting loop.
func (l *Loop) CancelAll() {
	l.jobs.CancelAll()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, wake := range l.wakers {
		wake()
	}
}

// Reset ends every loop, waits for them as Shutdown does, then rewinds
// the registry so ids start at 1 again. The Loop stays usable.
func (l *Loop) Reset(ctx context.Context) error {
	l.CancelAll()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		l.logger.Warn("tick loop reset did not drain")
		err = ctx.Err()
	}
	l.jobs.Reset()
	return err
}

// Shutdown cancels every job and waits for all loops to finish their
// done callbacks, or for ctx to expire. Loops started after Shutdown
// end before their first tick.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	l.CancelAll()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		l.logger.Warn("tick loop shutdown timed out")
		return ctx.Err()
	}
}

// run owns one job. waitCtx is cancelled by Cancel to cut a wait short;
// the tick itself keeps the caller's ctx so a tick in flight is not
// interrupted by a registry cancel.
//
// The loop holds a lease rather than a bare id: after a registry Reset
// the id may be reissued, and this loop must neither keep running on
// the new job's liveness nor remove it when finishing.
func (l *Loop) run(ctx, waitCtx context.Context, wake context.CancelFunc, lease job.Lease, name string, sched cadence.Schedule, onTick Func, onDone DoneFunc) {
	defer l.wg.Done()
	defer wake()

	id := lease.ID
	var progress int64
	for {
		if !l.sleep(waitCtx, sched.Delay(int(progress)+1)) {
			l.jobs.Release(lease)
		}
		if !l.jobs.Held(lease) {
			break
		}

		cancel, err := l.tick(ctx, id, name, progress, onTick)
		if err != nil || cancel {
			if err != nil {
				l.logger.Warn("tick loop ending on error",
					slog.String("job_name", name),
					slog.Int64("job_id", int64(id)),
					slog.String("error", err.Error()),
				)
			}
			l.jobs.Release(lease)
			break
		}
		progress++
	}

	l.finish(lease, name, progress, onDone)
}

// sleep waits d and reports false if ctx ended first.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Loop) tick(ctx context.Context, id job.ID, name string, progress int64, onTick Func) (cancel bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in tick %s#%d: %v", name, progress, r)
		}
	}()

	run := func(ctx context.Context) error {
		var tickErr error
		cancel, tickErr = onTick(ctx, progress)
		return tickErr
	}

	if l.mw == nil {
		err = run(ctx)
		return cancel, err
	}

	t := &job.Tick{JobID: id, Name: name, Progress: progress}
	err = l.mw(ctx, t, run)
	return cancel, err
}

func (l *Loop) finish(lease job.Lease, name string, progress int64, onDone DoneFunc) {
	id := lease.ID
	defer func() {
		l.jobs.Release(lease)

		l.mu.Lock()
		delete(l.wakers, lease)
		l.mu.Unlock()
	}()

	if onDone == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tick done callback panicked",
				slog.String("job_name", name),
				slog.Int64("job_id", int64(id)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	onDone(progress)
}

func (l *Loop) wake(id job.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for lease, wake := range l.wakers {
		if lease.ID == id {
			wake()
		}
	}
}
