package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/xraph/runner"
	"github.com/xraph/runner/cadence"
	"github.com/xraph/runner/event"
	"github.com/xraph/runner/ext"
	"github.com/xraph/runner/location"
	mw "github.com/xraph/runner/middleware"
	"github.com/xraph/runner/observability"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/platform"
	"github.com/xraph/runner/store"
	"github.com/xraph/runner/store/memory"
	"github.com/xraph/runner/task"
	"github.com/xraph/runner/tick"
)

const instrumentationName = "github.com/xraph/runner"

// defaultWatchTitle names location tracking runs started without a title.
const defaultWatchTitle = "LocationTracking"

// Coordinator is the application-facing surface. It is safe for
// concurrent use.
type Coordinator struct {
	cfg      runner.Config
	logger   *slog.Logger
	platform platform.Platform

	sensor      location.Sensor
	permissions permission.Backend
	prompter    permission.Prompter
	promptLimit rate.Limit
	promptBurst int
	flags       store.FlagStore
	ownsFlags   bool

	bus         *event.Bus
	extensions  *ext.Registry
	pendingExts []ext.Extension
	metrics     *observability.MetricsExtension
	gate        *permission.Gate
	watcher     *location.Watcher
	tasks       *task.Manager
	loops       *tick.Loop

	mws            []mw.Middleware
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	onForeground   ForegroundHook

	mu           sync.Mutex
	watchGen     uint64
	watching     bool
	bgMonitoring bool
}

// New builds a Coordinator for the given platform.
func New(p platform.Platform, opts ...Option) (*Coordinator, error) {
	if p == nil {
		return nil, runner.ErrNoPlatform
	}

	c := &Coordinator{
		cfg:      runner.DefaultConfig(),
		logger:   slog.Default(),
		platform: p,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.bus == nil {
		c.bus = event.NewBus(event.WithLogger(c.logger))
	}
	if c.flags == nil {
		c.flags = memory.New()
		c.ownsFlags = true
	}

	c.extensions = ext.NewRegistry(c.logger)
	c.metrics = observability.NewMetricsExtension()
	c.extensions.Register(c.metrics)
	for _, e := range c.pendingExts {
		c.extensions.Register(e)
	}
	c.pendingExts = nil

	watchOpts := []location.Option{
		location.WithLogger(c.logger),
		location.WithEmitter(c.extensions),
	}
	taskOpts := []task.Option{
		task.WithLogger(c.logger),
		task.WithEmitter(c.extensions),
	}
	if c.permissions != nil {
		gateOpts := []permission.Option{
			permission.WithMessage(c.cfg.SettingsPrompt),
			permission.WithEmitter(c.extensions),
			permission.WithLogger(c.logger),
		}
		if c.prompter != nil {
			gateOpts = append(gateOpts, permission.WithPrompter(c.prompter))
		}
		if c.promptLimit != 0 {
			gateOpts = append(gateOpts, permission.WithPromptLimit(c.promptLimit, c.promptBurst))
		}
		c.gate = permission.NewGate(c.permissions, gateOpts...)
		watchOpts = append(watchOpts, location.WithAccess(c.gate))
		taskOpts = append(taskOpts, task.WithGate(c.gate))
	}

	c.watcher = location.NewWatcher(c.sensor, c.bus, watchOpts...)
	c.tasks = task.NewManager(p, c.bus, taskOpts...)
	c.loops = tick.New(
		tick.WithLogger(c.logger),
		tick.WithMiddleware(c.middlewares()...),
	)

	return c, nil
}

// middlewares builds the tick chain: recover → tracing → metrics →
// logging → timeout, followed by user middleware.
func (c *Coordinator) middlewares() []mw.Middleware {
	tracing := mw.Tracing()
	if c.tracerProvider != nil {
		tracing = mw.TracingWithTracer(c.tracerProvider.Tracer(instrumentationName))
	}
	metrics := mw.Metrics()
	if c.meterProvider != nil {
		metrics = mw.MetricsWithMeter(c.meterProvider.Meter(instrumentationName))
	}

	all := make([]mw.Middleware, 0, 5+len(c.mws))
	all = append(all,
		mw.Recover(c.logger),
		tracing,
		metrics,
		mw.Logging(c.logger),
	)
	if c.cfg.TickTimeout > 0 {
		all = append(all, mw.Timeout(c.logger, c.cfg.TickTimeout))
	}
	return append(all, c.mws...)
}

// ──────────────────────────────────────────────────
// Task lifecycle
// ──────────────────────────────────────────────────

// Start launches body as the background task. See task.Manager.Start.
func (c *Coordinator) Start(ctx context.Context, body task.Body, opts task.Options) error {
	return c.tasks.Start(ctx, body, opts)
}

// StartPeriodic launches a task that calls onTick every opts.Delay
// (Config.DefaultDelay when zero) until the task is stopped or onTick
// ends the loop. A loop that ends on its own stops the task.
func (c *Coordinator) StartPeriodic(ctx context.Context, onTick tick.Func, opts task.Options) error {
	if opts.Delay == 0 {
		opts.Delay = c.cfg.DefaultDelay
	}
	return c.StartScheduled(ctx, onTick, cadence.Every(opts.Delay), opts)
}

// StartScheduled is StartPeriodic with the waits between ticks taken
// from sched, for example a cadence.Cron.
func (c *Coordinator) StartScheduled(ctx context.Context, onTick tick.Func, sched cadence.Schedule, opts task.Options) error {
	if onTick == nil || sched == nil {
		return runner.ErrNilTask
	}
	return c.tasks.Start(ctx, c.periodic(onTick, sched, nil), opts)
}

// periodic adapts a tick function into a task body. after runs once the
// loop has ended.
func (c *Coordinator) periodic(onTick tick.Func, sched cadence.Schedule, after func(ctx context.Context)) task.Body {
	return func(ctx context.Context, run *task.Run) error {
		done := make(chan int64, 1)
		c.loops.StartWithSchedule(ctx, run.Descriptor().Name, sched, onTick, func(progress int64) {
			done <- progress
		})
		progress := <-done

		c.logger.Debug("periodic task loop ended",
			slog.String("name", run.Descriptor().Name),
			slog.Int64("ticks", progress),
		)
		if after != nil {
			after(context.WithoutCancel(ctx))
		}
		return nil
	}
}

// Stop ends the current task. It is a no-op when nothing is running.
func (c *Coordinator) Stop(ctx context.Context) error {
	return c.tasks.Stop(ctx)
}

// IsRunning reports whether a task is registered and running.
func (c *Coordinator) IsRunning() bool {
	return c.tasks.IsRunning()
}

// State returns a snapshot of the task slot.
func (c *Coordinator) State() task.RunState {
	return c.tasks.State()
}

// Expire publishes lifecycle-expired. The host calls it when the OS is
// about to reclaim background execution time.
func (c *Coordinator) Expire(ctx context.Context) {
	c.tasks.Expire(ctx)
}

// ──────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────

// Subscribe registers handler for name and returns its unsubscribe func.
func (c *Coordinator) Subscribe(name event.Name, handler event.Handler) func() {
	return c.bus.Subscribe(name, handler)
}

// UnsubscribeAll removes every handler for name.
func (c *Coordinator) UnsubscribeAll(name event.Name) {
	c.bus.UnsubscribeAll(name)
}

// ──────────────────────────────────────────────────
// Location
// ──────────────────────────────────────────────────

// WatchLocation requests location access and, once both tiers are held
// and no task is running, starts monitoring together with a periodic
// tracking task. On polling platforms every tick reads the current
// sample and forwards it when it moved. It returns a
// *permission.DeniedError when access is refused.
func (c *Coordinator) WatchLocation(ctx context.Context, opts task.Options) error {
	res, err := c.RequestPermissions(ctx)
	if err != nil {
		return err
	}
	if !res.Granted() {
		c.logger.Warn("location watch not started: permission denied",
			slog.Bool("fine", res.FineGranted),
			slog.Bool("background", res.BackgroundGranted),
		)
		return &permission.DeniedError{Result: res}
	}

	if st := c.tasks.State().State; st != task.Stopped {
		c.logger.Warn("location watch ignored: task slot busy", slog.String("state", st.String()))
		return nil
	}

	if err := c.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start location watch: %w", err)
	}

	if opts.Title == "" {
		opts.Title = defaultWatchTitle
	}
	if opts.Delay == 0 {
		opts.Delay = c.cfg.DefaultDelay
	}

	c.mu.Lock()
	c.watchGen++
	gen := c.watchGen
	c.watching = true
	c.mu.Unlock()

	after := func(ctx context.Context) { c.endWatch(ctx, gen) }
	started, err := c.tasks.TryStart(ctx, c.periodic(c.pollTick, cadence.Every(opts.Delay), after), opts)
	if !started {
		// Lost the slot to a concurrent start, or the run never got going.
		c.endWatch(context.WithoutCancel(ctx), gen)
	}
	return err
}

// pollTick reads one sample on polling platforms. A failed read is
// logged and the loop keeps going.
func (c *Coordinator) pollTick(ctx context.Context, _ int64) (bool, error) {
	if !c.platform.PollsLocation() {
		return false, nil
	}
	s, err := c.watcher.Current(ctx)
	if err != nil {
		c.logger.Debug("location poll failed", slog.String("error", err.Error()))
		return false, nil
	}
	c.watcher.OnSample(ctx, s)
	return false, nil
}

// StopWatching stops the tracking task and location monitoring.
func (c *Coordinator) StopWatching(ctx context.Context) error {
	err := c.tasks.Stop(ctx)
	c.endWatch(ctx, 0)
	return err
}

// IsWatching reports whether a location watch started by WatchLocation
// is active.
func (c *Coordinator) IsWatching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watching
}

// endWatch clears the watch and stops monitoring if it is active. A
// non-zero gen only ends the watch it belongs to.
func (c *Coordinator) endWatch(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != 0 && gen != c.watchGen {
		c.mu.Unlock()
		return
	}
	c.watching = false
	c.bgMonitoring = false
	c.mu.Unlock()

	if c.watcher.State() != location.Monitoring {
		return
	}
	if err := c.watcher.Stop(ctx); err != nil {
		c.logger.Warn("stop location watch failed", slog.String("error", err.Error()))
	}
}

// CurrentLocation returns one fresh sample from the sensor.
func (c *Coordinator) CurrentLocation(ctx context.Context) (location.Sample, error) {
	return c.watcher.Current(ctx)
}

// WatchState returns the location watch state.
func (c *Coordinator) WatchState() location.State {
	return c.watcher.State()
}

// ──────────────────────────────────────────────────
// Permissions
// ──────────────────────────────────────────────────

// RequestPermissions walks the permission request chain. Without a
// permission backend both tiers are reported as held.
func (c *Coordinator) RequestPermissions(ctx context.Context) (permission.Result, error) {
	if c.gate == nil {
		return permission.Result{FineGranted: true, BackgroundGranted: true}, nil
	}
	return c.gate.Request(ctx)
}

// CheckPermissions queries both tiers without prompting.
func (c *Coordinator) CheckPermissions(ctx context.Context) (permission.Result, error) {
	if c.gate == nil {
		return permission.Result{FineGranted: true, BackgroundGranted: true}, nil
	}
	return c.gate.Check(ctx)
}

func (c *Coordinator) hasAccess(ctx context.Context) bool {
	return c.gate == nil || c.gate.Granted(ctx)
}

// ──────────────────────────────────────────────────
// Host transitions
// ──────────────────────────────────────────────────

// EnterBackground records whether a task was running when the host went
// to background. Platforms that monitor in background start monitoring
// when access is held and a task is running.
func (c *Coordinator) EnterBackground(ctx context.Context) error {
	processing := c.tasks.IsRunning()

	if c.platform.MonitorsInBackground() && processing && c.hasAccess(ctx) &&
		c.watcher.State() == location.Idle {
		if err := c.watcher.Start(ctx); err != nil {
			c.logger.Warn("background monitoring not started", slog.String("error", err.Error()))
		} else {
			c.mu.Lock()
			c.bgMonitoring = true
			c.mu.Unlock()
		}
	}

	if err := c.flags.SetFlag(ctx, c.cfg.BackgroundFlagKey, processing); err != nil {
		return fmt.Errorf("persist background flag: %w", err)
	}
	c.logger.Debug("entered background", slog.Bool("processing", processing))
	return nil
}

// EnterForeground reads the background flag back. When the host went to
// background mid-task and access is now missing, the foreground hook
// runs. Otherwise monitoring started by EnterBackground is stopped.
func (c *Coordinator) EnterForeground(ctx context.Context) error {
	wasProcessing, err := c.flags.GetFlag(ctx, c.cfg.BackgroundFlagKey)
	if err != nil && !errors.Is(err, runner.ErrFlagNotFound) {
		return fmt.Errorf("read background flag: %w", err)
	}

	if wasProcessing && !c.hasAccess(ctx) {
		c.logger.Warn("returned to foreground without location access")
		if c.onForeground != nil {
			c.onForeground(ctx)
		}
		return nil
	}

	c.mu.Lock()
	bg := c.bgMonitoring
	c.bgMonitoring = false
	c.mu.Unlock()

	if bg && c.watcher.State() == location.Monitoring {
		if err := c.watcher.Stop(ctx); err != nil {
			c.logger.Warn("stop background monitoring failed", slog.String("error", err.Error()))
		}
	}
	c.logger.Debug("entered foreground", slog.Bool("was_processing", wasProcessing))
	return nil
}

// ──────────────────────────────────────────────────
// Shutdown
// ──────────────────────────────────────────────────

// Shutdown stops the task, the location watch and every tick loop, then
// notifies extensions. It waits at most Config.ShutdownTimeout.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if c.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := c.tasks.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop task: %w", err))
	}
	c.endWatch(ctx, 0)
	if err := c.loops.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tick loops: %w", err))
	}

	c.extensions.EmitShutdown(ctx)

	if c.ownsFlags {
		if err := c.flags.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close flag store: %w", err))
		}
	}

	c.logger.Info("coordinator shut down")
	return errors.Join(errs...)
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Config returns the active configuration.
func (c *Coordinator) Config() runner.Config { return c.cfg }

// Platform returns the platform the coordinator was built for.
func (c *Coordinator) Platform() platform.Platform { return c.platform }

// Bus returns the event bus.
func (c *Coordinator) Bus() *event.Bus { return c.bus }

// Extensions returns the extension registry.
func (c *Coordinator) Extensions() *ext.Registry { return c.extensions }

// Metrics returns the built-in lifecycle metrics extension.
func (c *Coordinator) Metrics() *observability.MetricsExtension { return c.metrics }

// Loops returns the tick loop runner.
func (c *Coordinator) Loops() *tick.Loop { return c.loops }

// Watcher returns the location watcher.
func (c *Coordinator) Watcher() *location.Watcher { return c.watcher }

// FlagStore returns the background flag store.
func (c *Coordinator) FlagStore() store.FlagStore { return c.flags }
