package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for job tracing.
const tracerName = "github.com/sodmaster111/sodmaster"

// Tracing returns middleware that wraps each attempt in an OpenTelemetry
// span using the global TracerProvider. Without a configured provider the
// noop tracer makes this a pass-through.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
//
// Span attributes: sodmaster.job.id, sodmaster.feature, sodmaster.command,
// sodmaster.attempt, sodmaster.max_attempts.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, a Attempt, next Handler) error {
		ctx, span := tracer.Start(ctx, "sodmaster.job.attempt",
			trace.WithAttributes(
				attribute.String("sodmaster.job.id", a.JobID),
				attribute.String("sodmaster.feature", a.Feature),
				attribute.String("sodmaster.command", a.Command),
				attribute.Int("sodmaster.attempt", a.Number),
				attribute.Int("sodmaster.max_attempts", a.MaxAttempts),
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
