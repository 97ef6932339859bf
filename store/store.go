package store

import "context"

// FlagStore persists named boolean flags across process restarts. The
// coordinator uses it to remember whether the host went to background
// while a task was running.
type FlagStore interface {
	// GetFlag returns the stored value, or runner.ErrFlagNotFound if the
	// key has never been set.
	GetFlag(ctx context.Context, key string) (bool, error)

	// SetFlag stores value under key, overwriting any previous value.
	SetFlag(ctx context.Context, key string, value bool) error

	// Migrate prepares the backend schema.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources the store owns.
	Close() error
}
