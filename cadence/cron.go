package cadence

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ──────────────────────────────────────────────────
// Cron
// ──────────────────────────────────────────────────

// Cron waits until the next activation of a cron expression. Unlike the
// other schedules its delay depends on the wall clock, not on n.
type Cron struct {
	Expr  string
	sched cronlib.Schedule
	now   func() time.Time
}

// ParseCron parses a 5-field cron expression or a descriptor such as
// "@hourly" or "@every 30s".
func ParseCron(expr string) (*Cron, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cadence: parse cron %q: %w", expr, err)
	}
	return &Cron{Expr: expr, sched: s, now: time.Now}, nil
}

// WithClock returns a copy of c that reads the time from now.
func (c *Cron) WithClock(now func() time.Time) *Cron {
	cp := *c
	cp.now = now
	return &cp
}

// Delay returns the time left until the next activation.
func (c *Cron) Delay(_ int) time.Duration {
	now := c.now()
	d := c.sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
