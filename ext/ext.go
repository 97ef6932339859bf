package ext

import (
	"context"

	"github.com/xraph/runner/location"
	"github.com/xraph/runner/permission"
	"github.com/xraph/runner/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Run lifecycle hooks
// ──────────────────────────────────────────────────

// RunStarted is called after a background run is registered with the host.
type RunStarted interface {
	OnRunStarted(ctx context.Context, run task.RunDescriptor) error
}

// RunStopped is called after a background run is torn down.
type RunStopped interface {
	OnRunStopped(ctx context.Context, run task.RunDescriptor) error
}

// RegistrationFailed is called when the host refuses a registration.
type RegistrationFailed interface {
	OnRegistrationFailed(ctx context.Context, run task.RunDescriptor, err error) error
}

// ──────────────────────────────────────────────────
// Location hooks
// ──────────────────────────────────────────────────

// PermissionDenied is called when a permission request ends with a tier
// refused.
type PermissionDenied interface {
	OnPermissionDenied(ctx context.Context, res permission.Result) error
}

// WatchStateChanged is called on every Idle/Monitoring transition.
type WatchStateChanged interface {
	OnWatchStateChanged(ctx context.Context, from, to location.State) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
