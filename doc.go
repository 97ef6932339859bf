// Package runner coordinates a single long-lived background task on a
// mobile-style host, optionally combined with location sampling.
//
// The coordinator guarantees at most one active task, correct cancellation
// when a stop races with a running tick, monotonic job identity under
// concurrent creation, and idempotent state transitions across two
// asymmetric host platforms (one that polls location and replaces running
// registrations, one that pushes location and refuses a second
// registration).
//
// # Quick Start
//
//	c, err := engine.New(
//	    platform.NewAndroid(driver),
//	    engine.WithSensor(sensor),
//	    engine.WithPermissions(backend),
//	)
//
//	onTick := func(ctx context.Context, progress int64) (bool, error) {
//	    return false, doWork(ctx)
//	}
//	err = c.StartPeriodic(ctx, onTick, task.Options{Title: "Sync", Delay: 5 * time.Second})
//
// # Architecture
//
// Each concern lives in its own package: job (id registry), tick (periodic
// driver), cadence (tick schedules), location (watch state), permission
// (access gate), task (lifecycle), event (bus), platform (host
// capability) and store (background flag persistence). The engine
// package wires them together. All collaborators are injected; nothing
// is held in package-level state.
//
// Runs, events and subscriptions carry TypeID identifiers.
package runner
