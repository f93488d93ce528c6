package job

import "context"

// Store defines the persistence contract for job records.
//
// Implementations must be safe for concurrent use. Get returns a copy the
// caller may mutate freely.
type Store interface {
	// Create persists a new pending record with a nil result. It returns
	// sodmaster.ErrJobAlreadyExists if the id is taken.
	Create(ctx context.Context, id string, payload Document) error

	// Get retrieves a record by id, or sodmaster.ErrJobNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// SetStatus moves an existing record to status and replaces its result.
	// It returns sodmaster.ErrJobNotFound for an id that was never created
	// and sodmaster.ErrInvalidTransition if the move is not forward.
	SetStatus(ctx context.Context, id string, status Status, result Document) error

	// Ping probes backend liveness without side effects.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}
