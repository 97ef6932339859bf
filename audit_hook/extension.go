package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/runner/ext"
	"github.com/xraph/runner/location"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension          = (*Extension)(nil)
	_ ext.RunStarted         = (*Extension)(nil)
	_ ext.RunStopped         = (*Extension)(nil)
	_ ext.RegistrationFailed = (*Extension)(nil)
	_ ext.PermissionDenied   = (*Extension)(nil)
	_ ext.WatchStateChanged  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Run lifecycle hooks ─────────────────────────────

// OnRunStarted implements ext.RunStarted.
func (e *Extension) OnRunStarted(ctx context.Context, run task.RunDescriptor) error {
	return e.record(ctx, ActionRunStarted, SeverityInfo, OutcomeSuccess,
		ResourceRun, run.ID.String(), CategoryRun, nil,
		"run_name", run.Name,
		"title", run.Title,
		"sequence", run.Sequence,
	)
}

// OnRunStopped implements ext.RunStopped.
func (e *Extension) OnRunStopped(ctx context.Context, run task.RunDescriptor) error {
	return e.record(ctx, ActionRunStopped, SeverityInfo, OutcomeSuccess,
		ResourceRun, run.ID.String(), CategoryRun, nil,
		"run_name", run.Name,
		"sequence", run.Sequence,
	)
}

// OnRegistrationFailed implements ext.RegistrationFailed.
func (e *Extension) OnRegistrationFailed(ctx context.Context, run task.RunDescriptor, regErr error) error {
	return e.record(ctx, ActionRunRegistrationFailed, SeverityCritical, OutcomeFailure,
		ResourceRun, run.ID.String(), CategoryRun, regErr,
		"run_name", run.Name,
		"sequence", run.Sequence,
	)
}

// ── Location hooks ──────────────────────────────────

// OnPermissionDenied implements ext.PermissionDenied.
func (e *Extension) OnPermissionDenied(ctx context.Context, res permission.Result) error {
	return e.record(ctx, ActionPermissionDenied, SeverityWarning, OutcomeFailure,
		ResourcePermission, "", CategoryPermission, nil,
		"fine_granted", strconv.FormatBool(res.FineGranted),
		"background_granted", strconv.FormatBool(res.BackgroundGranted),
	)
}

// OnWatchStateChanged implements ext.WatchStateChanged.
func (e *Extension) OnWatchStateChanged(ctx context.Context, from, to location.State) error {
	action := ActionWatchStopped
	if to == location.Monitoring {
		action = ActionWatchStarted
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceWatch, "", CategoryLocation, nil,
		"from", from.String(),
		"to", to.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
