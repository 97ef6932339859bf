// Package tick drives periodic callbacks for jobs tracked by a
// [job.Registry].
//
// Each started loop owns one registry job. A cycle waits the scheduled
// delay, checks the job is still live, then runs the tick callback
// through the configured middleware. The loop ends when the job is
// cancelled from outside, when the callback asks to stop, or when it
// fails. Whatever the cause, the done callback fires exactly once with
// the last progress value and the job is removed from the registry.
//
// A tick already in flight is never preempted: cancellation is observed
// at the next tick boundary.
//
// [Loop.Reset] ends every loop and rewinds the registry, for a full
// restart without a new Loop.
package tick
