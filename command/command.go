// Package command maps feature commands to units of work.
//
// A feature (for example "a2a") owns a Registry of named commands. The
// HTTP surface resolves the command of each submission through Work; an
// unknown command still produces a unit of work, one that fails with
// "Unsupported command: <name>", so the failure is visible to pollers.
package command

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/job"
	"github.com/sodmaster111/sodmaster/runner"
)

// Handler runs one command against its payload.
type Handler func(ctx context.Context, payload job.Document) (job.Document, error)

// UnsupportedError reports a command with no registered handler.
type UnsupportedError struct {
	Name string
}

func (e *UnsupportedError) Error() string { return "Unsupported command: " + e.Name }

// Is makes errors.Is(err, sodmaster.ErrUnsupportedCommand) hold.
func (e *UnsupportedError) Is(target error) bool { return target == sodmaster.ErrUnsupportedCommand }

// Registry maps command names to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds name to h, replacing any previous handler.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("sodmaster/command: register %q: name and handler are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return nil
}

// Get returns the handler bound to name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Work resolves name to a unit of work.
func (r *Registry) Work(name string) runner.Work {
	h, ok := r.Get(name)
	if !ok {
		return func(context.Context, job.Document) (job.Document, error) {
			return nil, &UnsupportedError{Name: name}
		}
	}
	return runner.Work(h)
}

// ── Built-in commands ───────────────────────────────

// Ping echoes the payload back.
func Ping(_ context.Context, payload job.Document) (job.Document, error) {
	echo := payload.Clone()
	if echo == nil {
		echo = job.Document{}
	}
	return job.Document{"status": "pong", "echo": echo}, nil
}

// Noop does nothing.
func Noop(context.Context, job.Document) (job.Document, error) {
	return job.Document{"status": "noop"}, nil
}

// Builtins returns a registry holding ping and noop.
func Builtins() *Registry {
	r := NewRegistry()
	_ = r.Register("ping", Ping)
	_ = r.Register("noop", Noop)
	return r
}
