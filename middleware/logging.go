package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs attempt start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, a Attempt, next Handler) error {
		logger.Debug("attempt started",
			slog.String("job_id", a.JobID),
			slog.String("feature", a.Feature),
			slog.Int("attempt", a.Number),
			slog.Int("max_attempts", a.MaxAttempts),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("attempt failed",
				slog.String("job_id", a.JobID),
				slog.Int("attempt", a.Number),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("attempt succeeded",
				slog.String("job_id", a.JobID),
				slog.Int("attempt", a.Number),
				slog.Duration("elapsed", elapsed),
			)
		}
		return err
	}
}
