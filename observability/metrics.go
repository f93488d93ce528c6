package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "sodmaster"

// Metrics holds the collectors of one process. The fields are exported so
// callers and tests can read individual series.
type Metrics struct {
	Jobs              *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	AuditEvents       *prometheus.CounterVec
	Violations        *prometheus.CounterVec
	GuardrailDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

type options struct {
	namespace string
	runtime   bool
}

// Option configures Metrics.
type Option func(*options)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithRuntimeCollectors also registers the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(o *options) { o.runtime = true }
}

// New builds the collectors and registers them on a fresh registry.
func New(opts ...Option) *Metrics {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Metrics{
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "jobs_total",
			Help:      "Job status transitions by feature and status.",
		}, []string{"feature", "status"}),

		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from running to a terminal status.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}, []string{"feature", "status"}),

		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "audit_events_total",
			Help:      "Audit events by c-unit and severity.",
		}, []string{"c_unit", "severity"}),

		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "guardrail_violations_total",
			Help:      "Guardrail violations by guardrail and severity.",
		}, []string{"guardrail_id", "severity"}),

		GuardrailDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "guardrail_evaluation_seconds",
			Help:      "Time spent evaluating one guardrail against one event.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8), // 10µs to ~160ms
		}, []string{"guardrail_id"}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.Jobs, m.JobDuration, m.AuditEvents, m.Violations, m.GuardrailDuration)
	if o.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ── Recording ───────────────────────────────────────

// JobTransition counts a job reaching status.
func (m *Metrics) JobTransition(feature, status string) {
	m.Jobs.WithLabelValues(feature, status).Inc()
}

// JobFinished records the running-to-terminal duration of a job.
func (m *Metrics) JobFinished(feature, status string, d time.Duration) {
	m.JobDuration.WithLabelValues(feature, status).Observe(d.Seconds())
}

// AuditEvent counts one audit event.
func (m *Metrics) AuditEvent(cunit, severity string) {
	m.AuditEvents.WithLabelValues(cunit, severity).Inc()
}

// Violation counts one guardrail violation.
func (m *Metrics) Violation(guardrailID, severity string) {
	m.Violations.WithLabelValues(guardrailID, severity).Inc()
}

// GuardrailEvaluated records the evaluation time of one guardrail. Its
// signature matches guardrail.Observer.
func (m *Metrics) GuardrailEvaluated(guardrailID string, elapsed time.Duration) {
	m.GuardrailDuration.WithLabelValues(guardrailID).Observe(elapsed.Seconds())
}
