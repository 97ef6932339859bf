package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/runner/job"
)

// tracerName is the instrumentation scope name for runner tracing.
const tracerName = "github.com/xraph/runner"

// Tracing returns middleware that wraps each tick in a span from the
// global TracerProvider.
//
// Span attributes: runner.job.id, runner.job.name, runner.tick.progress.
// On error the span status is codes.Error with the error message.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *job.Tick, next Handler) error {
		ctx, span := tracer.Start(ctx, "runner.tick",
			trace.WithAttributes(
				attribute.Int64("runner.job.id", int64(t.JobID)),
				attribute.String("runner.job.name", t.Name),
				attribute.Int64("runner.tick.progress", t.Progress),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
