// Package memory implements job.Store entirely in process memory.
// It is the fallback backend when no persistent store is configured or
// reachable, and the fake used throughout the test suites.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/job"
)

// Compile-time interface check.
var _ job.Store = (*Store)(nil)

// Store is a mutex-guarded map of job records. Safe for concurrent access.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Record
	now  func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs: make(map[string]*job.Record),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Create persists a new pending record.
func (s *Store) Create(_ context.Context, id string, payload job.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return sodmaster.ErrJobAlreadyExists
	}
	s.jobs[id] = job.NewRecord(id, payload, s.now())
	return nil
}

// Get returns a deep copy of the record.
func (s *Store) Get(_ context.Context, id string) (*job.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.jobs[id]
	if !ok {
		return nil, sodmaster.ErrJobNotFound
	}
	return r.Clone(), nil
}

// SetStatus moves an existing record forward and replaces its result.
func (s *Store) SetStatus(_ context.Context, id string, status job.Status, result job.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.jobs[id]
	if !ok {
		return sodmaster.ErrJobNotFound
	}
	if !job.CanTransition(r.Status, status) {
		return sodmaster.ErrInvalidTransition
	}
	r.Status = status
	r.Result = result.Clone()
	r.UpdatedAt = s.now()
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
