// Package job tracks the identity and liveness of tick-driven jobs.
//
// A [Registry] hands out monotonically increasing integer ids starting at
// 1. Id allocation and the live-set update happen under the same mutex,
// so concurrent callers never observe a duplicate or a gap in ordering:
//
//	r := job.NewRegistry()
//	a := r.Create() // 1
//	b := r.Create() // 2
//	r.Cancel(a)
//	r.IsLive(a) // false
//
// Liveness is the only mutable attribute of a job. A tick loop checks it
// at every tick boundary and exits once it turns false. [Registry.CancelAll]
// marks every job dead at once; [Registry.Reset] additionally rewinds the
// counter. Owners that may outlive a Reset hold a [Lease] from
// [Registry.Acquire] instead of a bare id, so a reissued id is never
// mistaken for theirs.
package job
