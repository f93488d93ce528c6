// Package health tracks the readiness of the job store.
//
// A Monitor probes the store on a cron schedule (for example "@every 30s")
// and keeps the result of the last probe. Transitions are reported as
// audit events: ops.store.unreachable when a probe starts failing and
// ops.store.recovered when it succeeds again. Liveness never depends on
// the monitor; only readiness does.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/job"
	"github.com/sodmaster111/sodmaster/store"
)

// Check statuses.
const (
	StatusOK          = "ok"
	StatusUnreachable = "unreachable"
	StatusUnknown     = "unknown"
)

// DefaultCUnit receives the monitor's audit events.
const DefaultCUnit = "core.ops"

// DefaultProbeTimeout bounds one store ping.
const DefaultProbeTimeout = 2 * time.Second

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a probe schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Check is the state of one dependency.
type Check struct {
	Status    string    `json:"status"`
	Backend   string    `json:"backend,omitempty"`
	Degraded  bool      `json:"degraded"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// Report is the readiness view served on /ready.
type Report struct {
	Ready  bool             `json:"ready"`
	Checks map[string]Check `json:"checks"`
}

// Monitor probes a job store and remembers the outcome.
type Monitor struct {
	store     job.Store
	selection store.Selection
	emitter   audit.Emitter
	cunit     string
	timeout   time.Duration
	logger    *slog.Logger

	mu        sync.RWMutex
	probed    bool
	healthy   bool
	lastErr   string
	checkedAt time.Time

	cron *cronlib.Cron
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithEmitter sets where transition events go.
func WithEmitter(e audit.Emitter) Option {
	return func(m *Monitor) { m.emitter = e }
}

// WithCUnit overrides DefaultCUnit.
func WithCUnit(cunit string) Option {
	return func(m *Monitor) { m.cunit = cunit }
}

// WithProbeTimeout bounds each ping.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the monitor logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor returns a monitor for the store chosen by sel.
func NewMonitor(sel store.Selection, opts ...Option) *Monitor {
	m := &Monitor{
		store:     sel.Store,
		selection: sel,
		cunit:     DefaultCUnit,
		timeout:   DefaultProbeTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Probe pings the store once and records the result.
func (m *Monitor) Probe(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.store.Ping(pctx)

	m.mu.Lock()
	wasProbed, wasHealthy := m.probed, m.healthy
	m.probed = true
	m.healthy = err == nil
	m.checkedAt = time.Now().UTC()
	m.lastErr = ""
	if err != nil {
		m.lastErr = err.Error()
	}
	m.mu.Unlock()

	switch {
	case err != nil && (!wasProbed || wasHealthy):
		m.logger.ErrorContext(ctx, "job store unreachable",
			slog.String("event", "job_store_unreachable"),
			slog.String("backend", string(m.selection.Backend)),
			slog.String("error", err.Error()),
		)
		m.emit(ctx, audit.ActionStoreUnreachable, audit.SeverityHigh, job.Document{
			"backend": string(m.selection.Backend),
			"error":   err.Error(),
		})
	case err == nil && wasProbed && !wasHealthy:
		m.logger.InfoContext(ctx, "job store recovered",
			slog.String("event", "job_store_recovered"),
			slog.String("backend", string(m.selection.Backend)),
		)
		m.emit(ctx, audit.ActionStoreRecovered, audit.SeverityInfo, job.Document{
			"backend": string(m.selection.Backend),
		})
	}
	return err
}

// Report returns the readiness view. Before the first probe the store
// check is unknown and the process is not ready.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := Check{
		Status:    StatusUnknown,
		Backend:   string(m.selection.Backend),
		Degraded:  m.selection.Degraded,
		Reason:    m.selection.Reason,
		CheckedAt: m.checkedAt,
	}
	if m.probed {
		c.Status = StatusOK
		if !m.healthy {
			c.Status = StatusUnreachable
			c.Error = m.lastErr
		}
	}
	return Report{
		Ready:  m.probed && m.healthy,
		Checks: map[string]Check{"job_store": c},
	}
}

// Start probes once, then on every tick of spec.
func (m *Monitor) Start(ctx context.Context, spec string) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("sodmaster/health: parse schedule %q: %w", spec, err)
	}
	_ = m.Probe(ctx)

	bg := context.WithoutCancel(ctx)
	c := cronlib.New(cronlib.WithParser(cronParser))
	c.Schedule(sched, cronlib.FuncJob(func() { _ = m.Probe(bg) }))
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "health monitor started",
		slog.String("schedule", spec),
		slog.String("backend", string(m.selection.Backend)),
	)
	return nil
}

// Stop halts scheduling and waits for a running probe, or for ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) emit(ctx context.Context, name string, sev audit.Severity, payload job.Document) {
	if m.emitter == nil {
		return
	}
	evt := audit.NewEvent(name, m.cunit,
		audit.WithActor("health"),
		audit.WithSubject("job_store"),
		audit.WithSeverity(sev),
		audit.WithPayload(payload),
	)
	if err := m.emitter.Emit(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "audit emit failed",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}
