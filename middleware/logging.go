package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/runner/job"
)

// Logging returns middleware that logs every tick. Ticks fire every few
// seconds for the life of a task, so success is logged at debug level.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *job.Tick, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("tick failed",
				slog.String("job_name", t.Name),
				slog.Int64("job_id", int64(t.JobID)),
				slog.Int64("progress", t.Progress),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			return err
		}

		logger.Debug("tick completed",
			slog.String("job_name", t.Name),
			slog.Int64("job_id", int64(t.JobID)),
			slog.Int64("progress", t.Progress),
			slog.Duration("elapsed", elapsed),
		)
		return nil
	}
}
