package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/runner/location"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/task"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type runStartedEntry struct {
	name string
	hook RunStarted
}

type runStoppedEntry struct {
	name string
	hook RunStopped
}

type registrationFailedEntry struct {
	name string
	hook RegistrationFailed
}

type permissionDeniedEntry struct {
	name string
	hook PermissionDenied
}

type watchStateChangedEntry struct {
	name string
	hook WatchStateChanged
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Compile-time checks that the registry can be plugged into the
// subsystems that emit lifecycle events.
var (
	_ task.Emitter       = (*Registry)(nil)
	_ location.Emitter   = (*Registry)(nil)
	_ permission.Emitter = (*Registry)(nil)
)

// Registry holds registered extensions and dispatches lifecycle events
// to them. Extensions are type-cached at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
// Register all extensions before the coordinator starts.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	runStarted         []runStartedEntry
	runStopped         []runStoppedEntry
	registrationFailed []registrationFailedEntry
	permissionDenied   []permissionDeniedEntry
	watchStateChanged  []watchStateChangedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and caches it under every hook it
// implements. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(RunStarted); ok {
		r.runStarted = append(r.runStarted, runStartedEntry{name, h})
	}
	if h, ok := e.(RunStopped); ok {
		r.runStopped = append(r.runStopped, runStoppedEntry{name, h})
	}
	if h, ok := e.(RegistrationFailed); ok {
		r.registrationFailed = append(r.registrationFailed, registrationFailedEntry{name, h})
	}
	if h, ok := e.(PermissionDenied); ok {
		r.permissionDenied = append(r.permissionDenied, permissionDeniedEntry{name, h})
	}
	if h, ok := e.(WatchStateChanged); ok {
		r.watchStateChanged = append(r.watchStateChanged, watchStateChangedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitRunStarted notifies all extensions that implement RunStarted.
func (r *Registry) EmitRunStarted(ctx context.Context, run task.RunDescriptor) {
	for _, e := range r.runStarted {
		if err := e.hook.OnRunStarted(ctx, run); err != nil {
			r.logHookError("OnRunStarted", e.name, err)
		}
	}
}

// EmitRunStopped notifies all extensions that implement RunStopped.
func (r *Registry) EmitRunStopped(ctx context.Context, run task.RunDescriptor) {
	for _, e := range r.runStopped {
		if err := e.hook.OnRunStopped(ctx, run); err != nil {
			r.logHookError("OnRunStopped", e.name, err)
		}
	}
}

// EmitRegistrationFailed notifies all extensions that implement
// RegistrationFailed.
func (r *Registry) EmitRegistrationFailed(ctx context.Context, run task.RunDescriptor, regErr error) {
	for _, e := range r.registrationFailed {
		if err := e.hook.OnRegistrationFailed(ctx, run, regErr); err != nil {
			r.logHookError("OnRegistrationFailed", e.name, err)
		}
	}
}

// EmitPermissionDenied notifies all extensions that implement
// PermissionDenied.
func (r *Registry) EmitPermissionDenied(ctx context.Context, res permission.Result) {
	for _, e := range r.permissionDenied {
		if err := e.hook.OnPermissionDenied(ctx, res); err != nil {
			r.logHookError("OnPermissionDenied", e.name, err)
		}
	}
}

// EmitWatchStateChanged notifies all extensions that implement
// WatchStateChanged.
func (r *Registry) EmitWatchStateChanged(ctx context.Context, from, to location.State) {
	for _, e := range r.watchStateChanged {
		if err := e.hook.OnWatchStateChanged(ctx, from, to); err != nil {
			r.logHookError("OnWatchStateChanged", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from extensions are never propagated to the caller.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
