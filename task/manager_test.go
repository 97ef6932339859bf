package task_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/runner"
	"github.com/xraph/runner/event"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/platform"
	"github.com/xraph/runner/sim"
	"github.com/xraph/runner/task"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	driver *sim.Driver
	bus    *event.Bus
	mgr    *task.Manager
	spy    *lifecycleSpy
}

func newFixture(t *testing.T, p func(platform.Registrar) platform.Platform, opts ...task.Option) *fixture {
	t.Helper()
	d := sim.NewDriver(quietLogger())
	bus := event.NewBus(event.WithLogger(quietLogger()))
	spy := &lifecycleSpy{}
	opts = append([]task.Option{task.WithLogger(quietLogger()), task.WithEmitter(spy)}, opts...)
	return &fixture{
		driver: d,
		bus:    bus,
		mgr:    task.NewManager(p(d), bus, opts...),
		spy:    spy,
	}
}

func android(r platform.Registrar) platform.Platform { return platform.NewAndroid(r) }
func ios(r platform.Registrar) platform.Platform     { return platform.NewIOS(r) }

type lifecycleSpy struct {
	started, stopped, failed atomic.Int32
}

func (s *lifecycleSpy) EmitRunStarted(context.Context, task.RunDescriptor) { s.started.Add(1) }
func (s *lifecycleSpy) EmitRunStopped(context.Context, task.RunDescriptor) { s.stopped.Add(1) }
func (s *lifecycleSpy) EmitRegistrationFailed(context.Context, task.RunDescriptor, error) {
	s.failed.Add(1)
}

// untilStopped blocks until the run is stopped.
func untilStopped(ctx context.Context, _ *task.Run) error {
	<-ctx.Done()
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestManager_StartStop(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	if err := f.mgr.Start(ctx, untilStopped, task.Options{Title: "sync"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !f.mgr.IsRunning() {
		t.Fatal("IsRunning should be true after Start")
	}

	if err := f.mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.mgr.IsRunning() {
		t.Fatal("IsRunning should be false after Stop")
	}
	if f.driver.Registers() != 1 || f.driver.Deregisters() != 1 {
		t.Errorf("register/deregister = %d/%d, want 1/1", f.driver.Registers(), f.driver.Deregisters())
	}
	if f.spy.started.Load() != 1 || f.spy.stopped.Load() != 1 {
		t.Errorf("emitted started/stopped = %d/%d, want 1/1", f.spy.started.Load(), f.spy.stopped.Load())
	}
}

func TestManager_StartWhileRunningIsNoop(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	_ = f.mgr.Start(ctx, untilStopped, task.Options{Title: "a"})
	if err := f.mgr.Start(ctx, untilStopped, task.Options{Title: "b"}); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if f.driver.Registers() != 1 {
		t.Errorf("registers = %d, want 1", f.driver.Registers())
	}
	if rs := f.mgr.State(); rs.Run == nil || rs.Run.Name != "a1" {
		t.Errorf("current run = %+v, want a1", rs.Run)
	}
	_ = f.mgr.Stop(ctx)
}

func TestManager_ConcurrentStartRegistersOnce(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.mgr.Start(ctx, untilStopped, task.Options{Title: "race"})
		}()
	}
	wg.Wait()

	if f.driver.Registers() != 1 {
		t.Errorf("registers = %d, want 1", f.driver.Registers())
	}
	_ = f.mgr.Stop(ctx)
}

func TestManager_StopIsIdempotent(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	var stops atomic.Int32
	f.bus.Subscribe(event.RunStopped, func(context.Context, *event.Event) { stops.Add(1) })

	handles := make(chan *task.Run, 1)
	_ = f.mgr.Start(ctx, func(ctx context.Context, run *task.Run) error {
		handles <- run
		<-ctx.Done()
		return nil
	}, task.Options{Title: "x"})
	done := (<-handles).Done()

	_ = f.mgr.Stop(ctx)
	_ = f.mgr.Stop(ctx)
	_ = f.mgr.Stop(ctx)

	select {
	case <-done:
	default:
		t.Fatal("run should be resolved after Stop")
	}
	if f.driver.Deregisters() != 1 {
		t.Errorf("deregisters = %d, want 1", f.driver.Deregisters())
	}
	if stops.Load() != 1 {
		t.Errorf("run-stopped events = %d, want 1", stops.Load())
	}
}

func TestManager_StopWhenStoppedIsNoop(t *testing.T) {
	f := newFixture(t, android)
	if err := f.mgr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.driver.Deregisters() != 0 {
		t.Errorf("deregisters = %d, want 0", f.driver.Deregisters())
	}
}

func TestManager_NaturalFinishStopsRun(t *testing.T) {
	f := newFixture(t, android)

	err := f.mgr.Start(context.Background(), func(context.Context, *task.Run) error {
		return nil
	}, task.Options{Title: "short"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return f.mgr.State().State == task.Stopped })
	waitFor(t, func() bool { return f.driver.Deregisters() == 1 })
	if f.driver.IsNativeRunning() {
		t.Error("host registration should be torn down")
	}
}

func TestManager_StaleFinishDoesNotStopNewRun(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	release := make(chan struct{})
	_ = f.mgr.Start(ctx, func(context.Context, *task.Run) error {
		<-release
		return nil
	}, task.Options{Title: "old"})
	_ = f.mgr.Stop(ctx)

	if err := f.mgr.Start(ctx, untilStopped, task.Options{Title: "new"}); err != nil {
		t.Fatalf("Start new: %v", err)
	}
	close(release)
	time.Sleep(20 * time.Millisecond)

	if !f.mgr.IsRunning() {
		t.Fatal("new run should still be running")
	}
	if rs := f.mgr.State(); rs.Run == nil || rs.Run.Name != "new2" {
		t.Errorf("current run = %+v, want new2", rs.Run)
	}
	_ = f.mgr.Stop(ctx)
}

func TestManager_BodyContextCancelledOnStop(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	exited := make(chan struct{})
	_ = f.mgr.Start(ctx, func(ctx context.Context, _ *task.Run) error {
		<-ctx.Done()
		close(exited)
		return nil
	}, task.Options{Title: "coop"})

	_ = f.mgr.Stop(ctx)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("body did not observe cancellation")
	}
}

func TestManager_PanickingBodyStopsRun(t *testing.T) {
	f := newFixture(t, android)

	_ = f.mgr.Start(context.Background(), func(context.Context, *task.Run) error {
		panic("body exploded")
	}, task.Options{Title: "boom"})

	waitFor(t, func() bool { return f.mgr.State().State == task.Stopped })
}

func TestManager_SequenceAndNaming(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	f.driver.FailRegistrations(errors.New("service refused"))
	_ = f.mgr.Start(ctx, untilStopped, task.Options{Title: "job"})
	f.driver.FailRegistrations(nil)

	descs := make(chan task.RunDescriptor, 1)
	_ = f.mgr.Start(ctx, func(ctx context.Context, run *task.Run) error {
		descs <- run.Descriptor()
		<-ctx.Done()
		return nil
	}, task.Options{Title: "job", Description: "syncing", Delay: 5 * time.Second})

	desc := <-descs
	if desc.Sequence != 2 || desc.Name != "job2" {
		t.Errorf("descriptor = %+v, want sequence 2 name job2", desc)
	}
	if desc.Delay != 5*time.Second || desc.Description != "syncing" {
		t.Errorf("descriptor options = %+v", desc)
	}
	if got := f.driver.LastRegistration().Name; got != "job2" {
		t.Errorf("registered name = %q, want job2", got)
	}
	_ = f.mgr.Stop(ctx)
}

func TestManager_RegistrationFailure(t *testing.T) {
	backend := sim.GrantAll()
	gate := permission.NewGate(backend, permission.WithLogger(quietLogger()))
	f := newFixture(t, android, task.WithGate(gate))
	f.driver.FailRegistrations(errors.New("service refused"))

	err := f.mgr.Start(context.Background(), untilStopped, task.Options{Title: "x"})
	if !errors.Is(err, runner.ErrRegistrationFailed) {
		t.Fatalf("Start error = %v, want ErrRegistrationFailed", err)
	}
	if f.mgr.State().State != task.Stopped {
		t.Errorf("state = %v, want stopped", f.mgr.State().State)
	}
	if backend.Calls(sim.QueryFine) == 0 {
		t.Error("permission should be re-checked after a failed registration")
	}
	if f.spy.failed.Load() != 1 {
		t.Errorf("registration failures emitted = %d, want 1", f.spy.failed.Load())
	}
}

func TestManager_IOSWithoutAccess(t *testing.T) {
	backend := sim.NewPermissions()
	prompter := &sim.Prompter{}
	gate := permission.NewGate(backend, permission.WithPrompter(prompter), permission.WithLogger(quietLogger()))
	f := newFixture(t, ios, task.WithGate(gate))

	err := f.mgr.Start(context.Background(), untilStopped, task.Options{Title: "x"})

	var denied *permission.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("Start error = %v, want *permission.DeniedError", err)
	}
	if f.driver.Registers() != 0 {
		t.Errorf("registers = %d, want 0", f.driver.Registers())
	}
	if backend.Calls(sim.RequestFine) != 1 {
		t.Errorf("RequestFine calls = %d, want 1", backend.Calls(sim.RequestFine))
	}
	if len(prompter.Messages()) != 1 {
		t.Errorf("prompts = %d, want 1", len(prompter.Messages()))
	}
	if f.mgr.State().State != task.Stopped {
		t.Errorf("state = %v, want stopped", f.mgr.State().State)
	}
}

func TestManager_IOSWithAccess(t *testing.T) {
	gate := permission.NewGate(sim.GrantAll(), permission.WithLogger(quietLogger()))
	f := newFixture(t, ios, task.WithGate(gate))

	if err := f.mgr.Start(context.Background(), untilStopped, task.Options{Title: "x"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !f.mgr.IsRunning() {
		t.Error("IsRunning should be true")
	}
	_ = f.mgr.Stop(context.Background())
}

func TestManager_InvalidOptions(t *testing.T) {
	f := newFixture(t, android)

	err := f.mgr.Start(context.Background(), untilStopped, task.Options{Delay: -time.Second})
	if !errors.Is(err, runner.ErrInvalidOptions) {
		t.Errorf("Start error = %v, want ErrInvalidOptions", err)
	}
	if err := f.mgr.Start(context.Background(), nil, task.Options{}); !errors.Is(err, runner.ErrNilTask) {
		t.Errorf("Start error = %v, want ErrNilTask", err)
	}
	if got := f.mgr.State().Sequence; got != 2 {
		t.Errorf("sequence = %d, want 2: rejected calls still count", got)
	}

	descs := make(chan task.RunDescriptor, 1)
	err = f.mgr.Start(context.Background(), func(ctx context.Context, run *task.Run) error {
		descs <- run.Descriptor()
		<-ctx.Done()
		return nil
	}, task.Options{Title: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d := <-descs; d.Name != "x3" {
		t.Errorf("name = %q, want x3", d.Name)
	}
	_ = f.mgr.Stop(context.Background())
}

func TestManager_BusyStartKeepsSequence(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	_ = f.mgr.Start(ctx, untilStopped, task.Options{Title: "x"})
	started, err := f.mgr.TryStart(ctx, untilStopped, task.Options{Title: "x"})
	if err != nil || started {
		t.Fatalf("TryStart on busy slot = %v, %v; want false, nil", started, err)
	}
	if got := f.mgr.State().Sequence; got != 1 {
		t.Errorf("sequence = %d, want 1", got)
	}
	_ = f.mgr.Stop(ctx)
}

// blockingGate holds Check until released.
type blockingGate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGate) Check(context.Context) (permission.Result, error) {
	close(g.entered)
	<-g.release
	return permission.Result{FineGranted: true, BackgroundGranted: true}, nil
}

func (g *blockingGate) Request(context.Context) (permission.Result, error) {
	return permission.Result{FineGranted: true, BackgroundGranted: true}, nil
}

func TestManager_StopWhileStarting(t *testing.T) {
	gate := &blockingGate{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, ios, task.WithGate(gate))
	ctx := context.Background()

	type result struct {
		started bool
		err     error
	}
	res := make(chan result, 1)
	go func() {
		started, err := f.mgr.TryStart(ctx, untilStopped, task.Options{Title: "x"})
		res <- result{started, err}
	}()

	<-gate.entered
	if st := f.mgr.State().State; st != task.Starting {
		t.Fatalf("state = %v, want starting", st)
	}
	if err := f.mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st := f.mgr.State().State; st != task.Stopped {
		t.Fatalf("state after Stop = %v, want stopped", st)
	}
	close(gate.release)

	r := <-res
	if r.err != nil || r.started {
		t.Fatalf("TryStart = %v, %v; want false, nil", r.started, r.err)
	}
	if f.mgr.IsRunning() {
		t.Error("stop issued while starting was lost")
	}
	if f.driver.Registers() != 0 {
		t.Errorf("registers = %d, want 0", f.driver.Registers())
	}
}

func TestManager_RunSubscriptionsClearedOnStop(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	subscribed := make(chan struct{})
	_ = f.mgr.Start(ctx, func(ctx context.Context, run *task.Run) error {
		run.Subscribe(event.LocationUpdate, func(context.Context, *event.Event) {})
		close(subscribed)
		<-ctx.Done()
		return nil
	}, task.Options{Title: "sub"})

	<-subscribed
	if n := f.bus.SubscriberCount(event.LocationUpdate); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}
	_ = f.mgr.Stop(ctx)
	if n := f.bus.SubscriberCount(event.LocationUpdate); n != 0 {
		t.Errorf("subscribers after stop = %d, want 0", n)
	}
}

func TestManager_Expire(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	var got event.RunPayload
	f.bus.Subscribe(event.LifecycleExpired, func(_ context.Context, evt *event.Event) {
		got = evt.Payload.(event.RunPayload)
	})

	_ = f.mgr.Start(ctx, untilStopped, task.Options{Title: "exp"})
	f.mgr.Expire(ctx)

	if got.Name != "exp1" {
		t.Errorf("expired run = %q, want exp1", got.Name)
	}
	_ = f.mgr.Stop(ctx)
}

func TestManager_RunEvents(t *testing.T) {
	f := newFixture(t, android)
	ctx := context.Background()

	var names []event.Name
	var mu sync.Mutex
	record := func(_ context.Context, evt *event.Event) {
		mu.Lock()
		names = append(names, evt.Name)
		mu.Unlock()
	}
	f.bus.Subscribe(event.RunStarted, record)
	f.bus.Subscribe(event.RunStopped, record)

	_ = f.mgr.Start(ctx, untilStopped, task.Options{Title: "ev"})
	_ = f.mgr.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(names) != 2 || names[0] != event.RunStarted || names[1] != event.RunStopped {
		t.Errorf("events = %v", names)
	}
}
