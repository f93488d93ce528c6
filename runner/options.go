package runner

import (
	"log/slog"
	"time"

	"github.com/sodmaster111/sodmaster/alert"
	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/backoff"
	"github.com/sodmaster111/sodmaster/middleware"
)

// Defaults applied by New.
const (
	DefaultCUnit   = "core.jobs"
	DefaultFeature = "jobs"
	DefaultActor   = "runner"
)

// Option configures a Runner.
type Option func(r *Runner, mws *[]middleware.Middleware)

// WithScheduler sets where executions run. Without one each execution
// gets its own goroutine. *worker.Pool satisfies audit.Scheduler.
func WithScheduler(s audit.Scheduler) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.scheduler = s }
}

// WithPolicy sets the retry policy.
func WithPolicy(p backoff.Policy) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.policy = p }
}

// WithSLO sets the latency objective. Zero disables SLO alerts.
func WithSLO(d time.Duration) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.slo = d }
}

// WithAlerter sets the alert destination.
func WithAlerter(s alert.Sender) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.alerter = s }
}

// WithMetrics sets the job metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.metrics = m }
}

// WithEmitter sets where audit events go.
func WithEmitter(e audit.Emitter) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.emitter = e }
}

// WithCUnit sets the c-unit of emitted audit events.
func WithCUnit(cunit string) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.cunit = cunit }
}

// WithFeature sets the feature label used in logs, metrics and events.
func WithFeature(feature string) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.feature = feature }
}

// WithActor sets the actor of emitted audit events.
func WithActor(actor string) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.actor = actor }
}

// WithMiddleware appends attempt middleware, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(_ *Runner, list *[]middleware.Middleware) { *list = append(*list, mws...) }
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.logger = l }
}

// WithClock overrides time.Now for duration measurement.
func WithClock(now func() time.Time) Option {
	return func(r *Runner, _ *[]middleware.Middleware) { r.now = now }
}
