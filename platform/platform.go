// Package platform describes the host capability the coordinator runs
// on. Two variants exist: an Android-like host that polls location and
// replaces a running registration, and an iOS-like host that needs
// location access up front, pushes samples, and refuses a second
// registration.
package platform

import (
	"context"
)

// Kind names a platform variant.
type Kind string

// Platform variants.
const (
	KindAndroid Kind = "android"
	KindIOS     Kind = "ios"
)

// BoundTask is the closure the host executes in the background. It
// returns when the task body finishes or the run is stopped.
type BoundTask func(ctx context.Context) error

// Registration is what the coordinator hands the host when a run starts.
type Registration struct {
	Name        string
	Title       string
	Description string
	Task        BoundTask
}

// Registrar is the host's background execution API.
type Registrar interface {
	// Register schedules reg.Task for background execution.
	Register(ctx context.Context, reg Registration) error
	// Deregister tears down the current registration.
	Deregister(ctx context.Context) error
	// IsNativeRunning reports whether the host still has a registration.
	IsNativeRunning() bool
}

// Platform is a Registrar plus the behavioural switches that differ
// between host variants.
type Platform interface {
	Registrar

	// Kind names the variant.
	Kind() Kind
	// RequiresAccess reports whether location access must be held before
	// a run may start.
	RequiresAccess() bool
	// PollsLocation reports whether location must be read by polling
	// inside the task instead of being pushed by the sensor.
	PollsLocation() bool
	// MonitorsInBackground reports whether location monitoring should be
	// switched on when the host goes to background with a run active.
	MonitorsInBackground() bool
}
