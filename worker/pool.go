// Package worker provides the bounded goroutine pool that runs detached
// work: job executions scheduled by the runner and audit deliveries
// published off the request path.
package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Task is a unit of detached work.
type Task = func(ctx context.Context)

// Pool runs tasks on their own goroutines, at most concurrency at a time.
// Go never blocks the caller: the slot is acquired inside the new
// goroutine, so a saturated pool queues work instead of stalling requests.
type Pool struct {
	name        string
	concurrency int
	sem         chan struct{}
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup

	active  atomic.Int64
	pending atomic.Int64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the maximum number of tasks running at once.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPoolName labels the pool in log messages.
func WithPoolName(name string) PoolOption {
	return func(p *Pool) { p.name = name }
}

// NewPool creates a started pool.
func NewPool(logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		name:        "default",
		concurrency: 10,
		logger:      logger,
		running:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sem = make(chan struct{}, p.concurrency)
	return p
}

// Go schedules task. It reports false, without running anything, once the
// pool is stopped.
func (p *Pool) Go(ctx context.Context, task Task) bool {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.pending.Add(1)
	go func() {
		defer p.wg.Done()

		p.sem <- struct{}{}
		p.pending.Add(-1)
		p.active.Add(1)
		defer func() {
			p.active.Add(-1)
			<-p.sem
		}()

		p.run(ctx, task)
	}()
	return true
}

func (p *Pool) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				slog.String("pool", p.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	task(ctx)
}

// Active returns the number of tasks currently executing.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Pending returns the number of tasks waiting for a slot.
func (p *Pool) Pending() int { return int(p.pending.Load()) }

// Stop refuses new tasks and waits for scheduled ones to finish. Tasks are
// never cancelled; if ctx ends first Stop returns its error and the tasks
// keep running in the background.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping",
		slog.String("pool", p.name),
		slog.Int("active", p.Active()),
		slog.Int("pending", p.Pending()),
	)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully", slog.String("pool", p.name))
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out",
			slog.String("pool", p.name),
			slog.Int("active", p.Active()),
		)
		return ctx.Err()
	}
}
