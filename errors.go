package sodmaster

import "errors"

var (
	// Store errors.
	ErrNoStore            = errors.New("sodmaster: no store configured")
	ErrStoreUnavailable   = errors.New("sodmaster: store unavailable")
	ErrUnsupportedBackend = errors.New("sodmaster: unsupported store backend")
	ErrMigrationFailed    = errors.New("sodmaster: migration failed")

	// Not found errors.
	ErrJobNotFound = errors.New("sodmaster: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("sodmaster: job already exists")

	// State errors.
	ErrInvalidTransition  = errors.New("sodmaster: invalid status transition")
	ErrMaxRetriesExceeded = errors.New("sodmaster: max retries exceeded")

	// Audit errors.
	ErrUnknownCUnit     = errors.New("sodmaster: unknown c-unit")
	ErrInvalidCUnit     = errors.New("sodmaster: invalid c-unit")
	ErrInvalidGuardrail = errors.New("sodmaster: invalid guardrail")

	// Command errors.
	ErrUnsupportedCommand = errors.New("sodmaster: unsupported command")
)
