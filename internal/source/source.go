// Package source defines the read-only event source contract consumed by the
// mirror pipeline. Implementations must emit occurrence-expanded events:
// recurring series are flattened into per-instance events before the core
// ever sees them.
package source

import (
	"context"
	"fmt"
	"time"
)

// Event is a single occurrence as reported by the source provider.
type Event struct {
	// ID is the provider's stable unique id for this occurrence.
	ID string

	Title       string
	Description string
	Location    string

	// AllDay events carry date-only start/end in Start/End (midnight in the
	// event's own zone); End is the last covered date, not exclusive.
	AllDay bool
	Start  time.Time
	End    time.Time

	// Cancelled occurrences are excluded before normalization.
	Cancelled bool
}

// Reader fetches occurrence-expanded events within [since, until).
type Reader interface {
	Events(ctx context.Context, since, until time.Time) ([]Event, error)
}

// AuthError marks an expired or insufficient-scope credential. Runs abort
// before any mutation when the source fails this way.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
