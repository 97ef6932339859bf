package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	ah "github.com/xraph/runner/audit_hook"
	"github.com/xraph/runner/ext"
	"github.com/xraph/runner/id"
	"github.com/xraph/runner/location"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/task"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func newTestRun() task.RunDescriptor {
	return task.RunDescriptor{
		ID:       id.NewRunID(),
		Sequence: 3,
		Name:     "Tracking3",
		Title:    "Tracking",
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e := ah.New(&mockRecorder{})
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

func TestExtension_RunStarted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	run := newTestRun()

	if err := e.OnRunStarted(context.Background(), run); err != nil {
		t.Fatalf("OnRunStarted: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionRunStarted {
		t.Errorf("Action: want %q, got %q", ah.ActionRunStarted, evt.Action)
	}
	if evt.Resource != ah.ResourceRun {
		t.Errorf("Resource: want %q, got %q", ah.ResourceRun, evt.Resource)
	}
	if evt.Category != ah.CategoryRun {
		t.Errorf("Category: want %q, got %q", ah.CategoryRun, evt.Category)
	}
	if evt.ResourceID != run.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", run.ID.String(), evt.ResourceID)
	}
	if evt.Severity != ah.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", ah.SeverityInfo, evt.Severity)
	}
	if evt.Metadata["run_name"] != "Tracking3" {
		t.Errorf("Metadata[run_name]: want %q, got %v", "Tracking3", evt.Metadata["run_name"])
	}
	if evt.Metadata["sequence"] != 3 {
		t.Errorf("Metadata[sequence]: want 3, got %v", evt.Metadata["sequence"])
	}
}

func TestExtension_RegistrationFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnRegistrationFailed(context.Background(), newTestRun(), errors.New("host refused")); err != nil {
		t.Fatalf("OnRegistrationFailed: %v", err)
	}

	evt := rec.last()
	if evt.Severity != ah.SeverityCritical {
		t.Errorf("Severity: want %q, got %q", ah.SeverityCritical, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeFailure, evt.Outcome)
	}
	if evt.Reason != "host refused" {
		t.Errorf("Reason: want %q, got %q", "host refused", evt.Reason)
	}
	if evt.Metadata["error"] != "host refused" {
		t.Errorf("Metadata[error]: want %q, got %v", "host refused", evt.Metadata["error"])
	}
}

func TestExtension_PermissionDenied(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	res := permission.Result{FineGranted: true, BackgroundGranted: false}
	if err := e.OnPermissionDenied(context.Background(), res); err != nil {
		t.Fatalf("OnPermissionDenied: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionPermissionDenied {
		t.Errorf("Action: want %q, got %q", ah.ActionPermissionDenied, evt.Action)
	}
	if evt.Severity != ah.SeverityWarning {
		t.Errorf("Severity: want %q, got %q", ah.SeverityWarning, evt.Severity)
	}
	if evt.Metadata["fine_granted"] != "true" || evt.Metadata["background_granted"] != "false" {
		t.Errorf("unexpected tier metadata: %v", evt.Metadata)
	}
}

func TestExtension_WatchStateChanged(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()

	_ = e.OnWatchStateChanged(ctx, location.Idle, location.Monitoring)
	if got := rec.last().Action; got != ah.ActionWatchStarted {
		t.Errorf("Action: want %q, got %q", ah.ActionWatchStarted, got)
	}

	_ = e.OnWatchStateChanged(ctx, location.Monitoring, location.Idle)
	evt := rec.last()
	if evt.Action != ah.ActionWatchStopped {
		t.Errorf("Action: want %q, got %q", ah.ActionWatchStopped, evt.Action)
	}
	if evt.Metadata["from"] != "monitoring" || evt.Metadata["to"] != "idle" {
		t.Errorf("unexpected transition metadata: %v", evt.Metadata)
	}
}

// ── WithActions filter tests ─────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionRunStopped, ah.ActionPermissionDenied))

	ctx := context.Background()
	run := newTestRun()

	// Started is NOT enabled.
	if err := e.OnRunStarted(ctx, run); err != nil {
		t.Fatalf("OnRunStarted: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (started disabled), got %d", rec.count())
	}

	if err := e.OnRunStopped(ctx, run); err != nil {
		t.Fatalf("OnRunStopped: %v", err)
	}
	if err := e.OnPermissionDenied(ctx, permission.Result{}); err != nil {
		t.Fatalf("OnPermissionDenied: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── RecorderFunc adapter test ────────────────────────

func TestRecorderFunc(t *testing.T) {
	var captured *ah.AuditEvent
	fn := ah.RecorderFunc(func(_ context.Context, evt *ah.AuditEvent) error {
		captured = evt
		return nil
	})

	e := ah.New(fn)
	if err := e.OnRunStopped(context.Background(), newTestRun()); err != nil {
		t.Fatalf("OnRunStopped: %v", err)
	}
	if captured == nil {
		t.Fatal("RecorderFunc was not called")
	}
	if captured.Action != ah.ActionRunStopped {
		t.Errorf("Action: want %q, got %q", ah.ActionRunStopped, captured.Action)
	}
}

// ── Recorder error handling test ─────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder)
	if err := e.OnRunStarted(context.Background(), newTestRun()); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(ah.New(rec))

	ctx := context.Background()
	run := newTestRun()

	reg.EmitRunStarted(ctx, run)
	reg.EmitRunStopped(ctx, run)
	reg.EmitRegistrationFailed(ctx, run, errors.New("refused"))
	reg.EmitPermissionDenied(ctx, permission.Result{})
	reg.EmitWatchStateChanged(ctx, location.Idle, location.Monitoring)
	reg.EmitWatchStateChanged(ctx, location.Monitoring, location.Idle)

	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}
	for _, action := range allActions {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}
