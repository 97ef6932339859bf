package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/runner/job"
)

// Recover returns middleware that recovers from panics in the tick chain.
// The panic is logged with its stack and returned as an error, which
// ends the loop like any other tick failure.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *job.Tick, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("tick panicked",
					slog.String("job_name", t.Name),
					slog.Int64("job_id", int64(t.JobID)),
					slog.Int64("progress", t.Progress),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in tick %s#%d: %v", t.Name, t.Progress, r)
			}
		}()
		return next(ctx)
	}
}
