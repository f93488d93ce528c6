package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for job metrics.
const meterName = "github.com/sodmaster111/sodmaster"

// Metrics returns middleware that records per-attempt metrics using the
// global OTel MeterProvider.
//
// Instruments:
//   - sodmaster.job.attempt.duration (Float64Histogram): seconds per attempt
//   - sodmaster.job.attempts (Int64Counter): attempts executed
//
// Both carry the attributes feature and status ("ok" or "error").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The OTel API returns noop instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"sodmaster.job.attempt.duration",
		metric.WithDescription("Duration of a single unit-of-work attempt in seconds"),
		metric.WithUnit("s"),
	)
	attempts, _ := meter.Int64Counter(
		"sodmaster.job.attempts",
		metric.WithDescription("Total number of unit-of-work attempts"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, a Attempt, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("feature", a.Feature),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)
		return err
	}
}
