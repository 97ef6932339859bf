// Package task runs at most one background task at a time.
//
// A [Manager] walks a single slot through
//
//	Stopped → Starting → Running → Stopping → Stopped
//
// Start while the slot is busy is a logged no-op; Stop while it is free
// is a logged no-op. Each Start call bumps a sequence number and names
// the run Title+sequence, even when the start then fails.
//
// The body runs on the host's background execution (see package
// platform). When it returns on its own, the manager stops the run that
// launched it, and only that run: a late finish from an earlier run never
// tears down a newer one. When Stop is called first, the run's Done
// channel closes and the body's context is cancelled so a cooperative
// body can return.
package task
