package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler receives published events.
type Handler func(ctx context.Context, evt Event) error

// Scheduler runs detached work. *worker.Pool satisfies it. Go reports false
// when it refuses the task.
type Scheduler interface {
	Go(ctx context.Context, task func(ctx context.Context)) bool
}

type subscription struct {
	name    string
	handler Handler
}

// Bus is an in-process publish/subscribe channel for audit events.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger sets the logger used for subscriber failures.
func WithBusLogger(l *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// NewBus returns a Bus with no subscribers.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe appends h. The name only labels log messages.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

// Subscribers returns the subscriber names in delivery order.
func (b *Bus) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.subs))
	for i, s := range b.subs {
		names[i] = s.name
	}
	return names
}

// Publish delivers evt to every subscriber in registration order and
// returns once each has been called. Subscribers may publish from inside
// their handler; those events are delivered before Publish returns.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.deliver(ctx, s, evt); err != nil {
			b.logger.Error("audit subscriber failed",
				slog.String("subscriber", s.name),
				slog.String("event", evt.Name()),
				slog.String("event_id", evt.ID()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// PublishDetached hands delivery to sched. Without a scheduler, or when
// the scheduler refuses the task, it delivers synchronously instead.
func (b *Bus) PublishDetached(ctx context.Context, sched Scheduler, evt Event) {
	if sched != nil && sched.Go(ctx, func(ctx context.Context) { b.Publish(ctx, evt) }) {
		return
	}
	b.logger.Debug("detached publish ran synchronously",
		slog.String("event", evt.Name()),
		slog.Bool("has_scheduler", sched != nil),
	)
	b.Publish(ctx, evt)
}

func (b *Bus) deliver(ctx context.Context, s subscription, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Debug("audit subscriber panic stack",
				slog.String("subscriber", s.name),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}
