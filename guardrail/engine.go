package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sodmaster111/sodmaster/audit"
)

// Publisher is where violations go. *audit.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, evt audit.Event)
}

// Observer receives the evaluation time of each guardrail.
type Observer func(guardrailID string, elapsed time.Duration)

// Engine evaluates registered guardrails against every non-violation event.
type Engine struct {
	mu        sync.RWMutex
	rules     []Guardrail
	publisher Publisher
	observe   Observer
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver sets the per-guardrail timing callback.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observe = o }
}

// NewEngine returns an engine that publishes violations to pub.
func NewEngine(pub Publisher, opts ...Option) *Engine {
	e := &Engine{publisher: pub, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds g. A guardrail with the same id is replaced in place.
func (e *Engine) Register(g Guardrail) error {
	if err := g.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].ID == g.ID {
			e.rules[i] = g
			return nil
		}
	}
	e.rules = append(e.rules, g)
	return nil
}

// Guardrails returns the registered guardrails in evaluation order.
func (e *Engine) Guardrails() []Guardrail {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Guardrail(nil), e.rules...)
}

// Evaluate returns the violations evt raises, in guardrail order, without
// publishing them. Violations raise nothing.
func (e *Engine) Evaluate(evt audit.Event) []audit.Event {
	if evt.IsViolation() {
		return nil
	}

	e.mu.RLock()
	rules := append([]Guardrail(nil), e.rules...)
	e.mu.RUnlock()

	var out []audit.Event
	for _, g := range rules {
		v, ok, err := e.evaluate(g, evt)
		if err != nil {
			e.logger.Error("guardrail evaluation failed",
				slog.String("guardrail_id", g.ID),
				slog.String("event", evt.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			out = append(out, v)
		}
	}
	return out
}

// Handle is the bus handler: it evaluates evt and publishes each violation.
func (e *Engine) Handle(ctx context.Context, evt audit.Event) error {
	for _, v := range e.Evaluate(evt) {
		e.publisher.Publish(ctx, v)
	}
	return nil
}

func (e *Engine) evaluate(g Guardrail, evt audit.Event) (v audit.Event, ok bool, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			ok = false
		}
		if e.observe != nil {
			e.observe(g.ID, time.Since(start))
		}
	}()
	v, ok = g.Evaluate(evt)
	return v, ok, nil
}
