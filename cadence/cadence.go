// Package cadence provides tick delay schedules for periodic jobs.
// Every schedule is stateless and safe for concurrent use.
package cadence

import (
	"math"
	"math/rand/v2"
	"time"
)

// Schedule computes how long a tick loop waits before tick n.
type Schedule interface {
	// Delay returns the wait before tick n (1-indexed).
	Delay(n int) time.Duration
}

// ──────────────────────────────────────────────────
// Fixed
// ──────────────────────────────────────────────────

// Fixed waits the same period before every tick. It is what a task
// started with a plain delay uses.
type Fixed struct {
	Period time.Duration
}

// Every returns a Fixed schedule. Negative periods are clamped to zero.
func Every(period time.Duration) *Fixed {
	if period < 0 {
		period = 0
	}
	return &Fixed{Period: period}
}

// Delay returns the fixed period.
func (f *Fixed) Delay(_ int) time.Duration {
	return f.Period
}

// ──────────────────────────────────────────────────
// Ramp
// ──────────────────────────────────────────────────

// Ramp grows the wait by Step on every tick until it reaches Max.
// Delay = min(Start + Step*(n-1), Max).
type Ramp struct {
	Start time.Duration
	Step  time.Duration
	Max   time.Duration
}

// NewRamp creates a ramping schedule.
func NewRamp(start, step, maxDelay time.Duration) *Ramp {
	return &Ramp{Start: start, Step: step, Max: maxDelay}
}

// Delay returns Start + Step*(n-1), capped at Max.
func (r *Ramp) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := r.Start + r.Step*time.Duration(n-1)
	if r.Max > 0 && d > r.Max {
		return r.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Doubling
// ──────────────────────────────────────────────────

// Doubling doubles the wait on every tick, for pollers that should back
// off while nothing changes. Delay = min(Start * 2^(n-1), Max).
type Doubling struct {
	Start time.Duration
	Max   time.Duration
}

// NewDoubling creates a doubling schedule.
func NewDoubling(start, maxDelay time.Duration) *Doubling {
	return &Doubling{Start: start, Max: maxDelay}
}

// Delay returns Start * 2^(n-1), capped at Max.
func (d *Doubling) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	v := float64(d.Start) * math.Pow(2, float64(n-1))
	if d.Max > 0 && v > float64(d.Max) {
		return d.Max
	}
	return time.Duration(v)
}

// ──────────────────────────────────────────────────
// Jitter
// ──────────────────────────────────────────────────

// Jitter spreads another schedule by up to Fraction of its delay in
// either direction, so many devices polling the same backend do not
// wake in lockstep.
type Jitter struct {
	Base     Schedule
	Fraction float64
}

// WithJitter wraps base. Fraction is clamped to [0, 1].
func WithJitter(base Schedule, fraction float64) *Jitter {
	fraction = math.Max(0, math.Min(1, fraction))
	return &Jitter{Base: base, Fraction: fraction}
}

// Delay returns the base delay shifted by a random amount in
// [-Fraction*d, +Fraction*d].
func (j *Jitter) Delay(n int) time.Duration {
	d := float64(j.Base.Delay(n))
	spread := d * j.Fraction
	return time.Duration(d - spread + rand.Float64()*2*spread) //nolint:gosec // jitter intentionally uses non-crypto rand
}
