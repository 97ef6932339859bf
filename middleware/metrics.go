package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/runner/job"
)

// meterName is the instrumentation scope name for runner metrics.
const meterName = "github.com/xraph/runner"

// Metrics returns middleware that records per-tick metrics using the
// global OTel MeterProvider. Without a configured provider the
// instruments are noops.
//
// Instruments:
//   - runner.tick.duration (Float64Histogram): tick time in seconds,
//     with attributes job_name and status ("ok" or "error")
//   - runner.tick.executions (Int64Counter): ticks run, same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the OTel API hands back noop instruments.
	duration, _ := meter.Float64Histogram(
		"runner.tick.duration",
		metric.WithDescription("Duration of a single tick in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"runner.tick.executions",
		metric.WithDescription("Total number of ticks run"),
		metric.WithUnit("{tick}"),
	)

	return func(ctx context.Context, t *job.Tick, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("job_name", t.Name),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
