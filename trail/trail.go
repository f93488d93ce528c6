package trail

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/alert"
	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/guardrail"
)

// Recorder receives audit tallies. *observability.Metrics satisfies it.
type Recorder interface {
	AuditEvent(cunit, severity string)
	Violation(guardrailID, severity string)
	GuardrailEvaluated(guardrailID string, elapsed time.Duration)
}

var _ audit.Emitter = (*Trail)(nil)

// Trail validates, publishes and records audit events.
type Trail struct {
	mu     sync.RWMutex
	cunits map[string]audit.CUnit

	bus     *audit.Bus
	engine  *guardrail.Engine
	history *history

	scheduler audit.Scheduler
	alerter   alert.Sender
	recorder  Recorder
	logger    *slog.Logger
}

type config struct {
	historyLimit int
	cunits       []audit.CUnit
	guardrails   []guardrail.Guardrail
	scheduler    audit.Scheduler
	alerter      alert.Sender
	recorder     Recorder
	logger       *slog.Logger
}

// Option configures a Trail.
type Option func(*config)

// WithHistoryLimit sets the history capacity.
func WithHistoryLimit(n int) Option {
	return func(c *config) { c.historyLimit = n }
}

// WithCUnits registers the given c-units at construction.
func WithCUnits(units ...audit.CUnit) Option {
	return func(c *config) { c.cunits = append(c.cunits, units...) }
}

// WithGuardrails registers the given guardrails at construction.
func WithGuardrails(rules ...guardrail.Guardrail) Option {
	return func(c *config) { c.guardrails = append(c.guardrails, rules...) }
}

// WithScheduler sets the scheduler used by EmitDetached.
func WithScheduler(s audit.Scheduler) Option {
	return func(c *config) { c.scheduler = s }
}

// WithAlerter enables the alert sink.
func WithAlerter(s alert.Sender) Option {
	return func(c *config) { c.alerter = s }
}

// WithRecorder enables the metrics sink and guardrail timing.
func WithRecorder(r Recorder) Option {
	return func(c *config) { c.recorder = r }
}

// WithLogger sets the trail logger. It is shared with the bus and engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New builds a Trail and wires its sinks.
func New(opts ...Option) (*Trail, error) {
	cfg := config{historyLimit: DefaultHistoryLimit, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Trail{
		cunits:    make(map[string]audit.CUnit),
		bus:       audit.NewBus(audit.WithBusLogger(cfg.logger)),
		history:   newHistory(cfg.historyLimit),
		scheduler: cfg.scheduler,
		alerter:   cfg.alerter,
		recorder:  cfg.recorder,
		logger:    cfg.logger,
	}

	engineOpts := []guardrail.Option{guardrail.WithLogger(cfg.logger)}
	if cfg.recorder != nil {
		engineOpts = append(engineOpts, guardrail.WithObserver(cfg.recorder.GuardrailEvaluated))
	}
	t.engine = guardrail.NewEngine(t.bus, engineOpts...)

	t.bus.Subscribe("guardrail", t.engine.Handle)
	t.bus.Subscribe("log", t.logSink)
	if t.recorder != nil {
		t.bus.Subscribe("metrics", t.metricsSink)
	}
	if t.alerter != nil {
		t.bus.Subscribe("alert", t.alertSink)
	}

	for _, u := range cfg.cunits {
		if err := t.RegisterCUnit(u); err != nil {
			return nil, err
		}
	}
	for _, g := range cfg.guardrails {
		if err := t.RegisterGuardrail(g); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

// RegisterCUnit adds u to the catalog, replacing any c-unit with the same id.
func (t *Trail) RegisterCUnit(u audit.CUnit) error {
	if u.ID == "" {
		return fmt.Errorf("sodmaster/trail: register c-unit: %w: empty id", sodmaster.ErrInvalidCUnit)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cunits[u.ID] = u.Clone()
	return nil
}

// RegisterGuardrail adds g to the engine, replacing any guardrail with the same id.
func (t *Trail) RegisterGuardrail(g guardrail.Guardrail) error {
	return t.engine.Register(g)
}

// CUnits returns the catalog sorted by id.
func (t *Trail) CUnits() []audit.CUnit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]audit.CUnit, 0, len(t.cunits))
	for _, u := range t.cunits {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CUnit returns the registered c-unit with the given id.
func (t *Trail) CUnit(cunitID string) (audit.CUnit, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.cunits[cunitID]
	return u.Clone(), ok
}

// Guardrails returns the registered guardrails in evaluation order.
func (t *Trail) Guardrails() []guardrail.Guardrail {
	return t.engine.Guardrails()
}

// Subscribe adds h after the standard sinks.
func (t *Trail) Subscribe(name string, h audit.Handler) {
	t.bus.Subscribe(name, h)
}

// ──────────────────────────────────────────────────
// Emission
// ──────────────────────────────────────────────────

// Emit delivers evt to every subscriber, then records it in the history.
func (t *Trail) Emit(ctx context.Context, evt audit.Event) error {
	if err := t.check(evt); err != nil {
		return err
	}
	t.bus.Publish(ctx, evt)
	t.history.append(evt)
	return nil
}

// EmitDetached validates evt, records it, and hands delivery to the
// trail's scheduler. Without one it delivers synchronously.
func (t *Trail) EmitDetached(ctx context.Context, evt audit.Event) error {
	if err := t.check(evt); err != nil {
		return err
	}
	t.bus.PublishDetached(ctx, t.scheduler, evt)
	t.history.append(evt)
	return nil
}

// History returns the retained events, oldest first.
func (t *Trail) History() []audit.Event {
	return t.history.snapshot()
}

func (t *Trail) check(evt audit.Event) error {
	t.mu.RLock()
	_, ok := t.cunits[evt.CUnit()]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", sodmaster.ErrUnknownCUnit, evt.CUnit())
	}
	return nil
}
