// Package id generates the identifiers sodmaster mints on its own: job ids
// for submissions that arrive without one, and audit event ids.
//
// Generated ids are TypeIDs: K-sortable, UUIDv7-based and URL-safe, in the
// format "prefix_suffix". Caller-provided job ids are opaque strings and
// never need to parse as a TypeID.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for generated identifiers.
const (
	PrefixJob   Prefix = "job"
	PrefixEvent Prefix = "evt"
)

// New generates a new globally unique id string with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// NewJobID returns a fresh job id string.
func NewJobID() string { return New(PrefixJob) }

// NewEventID returns a fresh audit event id string.
func NewEventID() string { return New(PrefixEvent) }
