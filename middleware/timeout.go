package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/runner/job"
)

// Timeout returns middleware that bounds each tick by d. A tick that
// overruns sees its context cancelled and should return
// context.DeadlineExceeded, which ends the loop. A non-positive d
// disables the deadline.
func Timeout(logger *slog.Logger, d time.Duration) Middleware {
	return func(ctx context.Context, t *job.Tick, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		logger.Debug("tick timeout set",
			slog.String("job_name", t.Name),
			slog.Duration("timeout", d),
		)
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
