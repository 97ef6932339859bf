package observability

import (
	"context"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/runner/ext"
	"github.com/xraph/runner/location"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.RunStarted         = (*MetricsExtension)(nil)
	_ ext.RunStopped         = (*MetricsExtension)(nil)
	_ ext.RegistrationFailed = (*MetricsExtension)(nil)
	_ ext.PermissionDenied   = (*MetricsExtension)(nil)
	_ ext.WatchStateChanged  = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via go-utils MetricFactory.
// Register it as an extension to track run starts and stops, refused
// registrations, permission denials and location watch transitions.
type MetricsExtension struct {
	RunStarted         gu.Counter
	RunStopped         gu.Counter
	RegistrationFailed gu.Counter
	PermissionDenied   gu.Counter
	WatchStarted       gu.Counter
	WatchStopped       gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default metrics collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("runner/observability"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the provided MetricFactory.
// Use gu.NewMetricsCollector for testing.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		RunStarted:         factory.Counter("runner.run.started"),
		RunStopped:         factory.Counter("runner.run.stopped"),
		RegistrationFailed: factory.Counter("runner.run.registration_failed"),
		PermissionDenied:   factory.Counter("runner.permission.denied"),
		WatchStarted:       factory.Counter("runner.location.watch_started"),
		WatchStopped:       factory.Counter("runner.location.watch_stopped"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Run lifecycle hooks ─────────────────────────────

// OnRunStarted implements ext.RunStarted.
func (m *MetricsExtension) OnRunStarted(_ context.Context, _ task.RunDescriptor) error {
	m.RunStarted.Inc()
	return nil
}

// OnRunStopped implements ext.RunStopped.
func (m *MetricsExtension) OnRunStopped(_ context.Context, _ task.RunDescriptor) error {
	m.RunStopped.Inc()
	return nil
}

// OnRegistrationFailed implements ext.RegistrationFailed.
func (m *MetricsExtension) OnRegistrationFailed(_ context.Context, _ task.RunDescriptor, _ error) error {
	m.RegistrationFailed.Inc()
	return nil
}

// ── Location hooks ──────────────────────────────────

// OnPermissionDenied implements ext.PermissionDenied.
func (m *MetricsExtension) OnPermissionDenied(_ context.Context, _ permission.Result) error {
	m.PermissionDenied.Inc()
	return nil
}

// OnWatchStateChanged implements ext.WatchStateChanged.
func (m *MetricsExtension) OnWatchStateChanged(_ context.Context, _, to location.State) error {
	if to == location.Monitoring {
		m.WatchStarted.Inc()
	} else {
		m.WatchStopped.Inc()
	}
	return nil
}
