package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/xraph/runner"
	"github.com/xraph/runner/event"
	"github.com/xraph/runner/ext"
	"github.com/xraph/runner/location"
	mw "github.com/xraph/runner/middleware"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/store"
)

// ForegroundHook is called when the host returns to foreground after
// entering background mid-task, and location access is no longer held.
type ForegroundHook func(ctx context.Context)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig replaces the default configuration.
func WithConfig(cfg runner.Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithLogger sets the logger shared by every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSensor sets the location source.
func WithSensor(s location.Sensor) Option {
	return func(c *Coordinator) { c.sensor = s }
}

// WithPermissions sets the location permission backend. Without one,
// location access is treated as held.
func WithPermissions(b permission.Backend) Option {
	return func(c *Coordinator) { c.permissions = b }
}

// WithPrompter sets who shows the settings prompt on denial.
func WithPrompter(p permission.Prompter) Option {
	return func(c *Coordinator) { c.prompter = p }
}

// WithPromptLimit throttles the settings prompt.
func WithPromptLimit(r rate.Limit, burst int) Option {
	return func(c *Coordinator) {
		c.promptLimit = r
		c.promptBurst = burst
	}
}

// WithFlagStore sets where the background flag is persisted. The store
// is not closed by Shutdown. Defaults to an in-memory store.
func WithFlagStore(s store.FlagStore) Option {
	return func(c *Coordinator) { c.flags = s }
}

// WithBus shares an existing event bus.
func WithBus(b *event.Bus) Option {
	return func(c *Coordinator) { c.bus = b }
}

// WithExtension registers an extension. Extensions are registered after
// the built-in metrics extension, in option order.
func WithExtension(e ext.Extension) Option {
	return func(c *Coordinator) { c.pendingExts = append(c.pendingExts, e) }
}

// WithMiddleware adds middleware to the tick chain, after the defaults.
func WithMiddleware(m mw.Middleware) Option {
	return func(c *Coordinator) { c.mws = append(c.mws, m) }
}

// WithTracerProvider sets a custom OTel TracerProvider for tick tracing.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) { c.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for tick metrics.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) { c.meterProvider = mp }
}

// WithForegroundHook sets the hook run by EnterForeground when the host
// went to background mid-task and access has since been lost.
func WithForegroundHook(h ForegroundHook) Option {
	return func(c *Coordinator) { c.onForeground = h }
}
