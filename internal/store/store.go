// Package store provides versioned aggregate stores with optimistic
// concurrency control. Every mutable aggregate carries a version counter that
// increments by exactly one per successful write; a write presenting a stale
// version is rejected rather than overwriting.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no aggregate exists under the given ID.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned when creating an aggregate whose ID is taken.
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConcurrencyConflict is returned when an update presents a version
	// other than the aggregate's current version. Callers must re-read and
	// retry, never blindly overwrite.
	ErrConcurrencyConflict = errors.New("store: concurrency conflict")
)

// Entity is the base interface for stored aggregates.
type Entity interface {
	GetID() string
	GetVersion() int64
	SetVersion(v int64)
	SetTimestamps(now time.Time)
}

// Versioned provides the common aggregate fields. The zero version is 0; the
// first successful write produces version 1, so after n successful writes the
// version equals n.
type Versioned struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Versioned) GetID() string      { return e.ID }
func (e *Versioned) GetVersion() int64  { return e.Version }
func (e *Versioned) SetVersion(v int64) { e.Version = v }

// SetTimestamps stamps creation time on first write and update time always.
func (e *Versioned) SetTimestamps(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

// Store is the interface every service's aggregate store implements.
type Store[T Entity] interface {
	// Get retrieves an aggregate by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (T, error)
	// List returns all aggregates.
	List(ctx context.Context) ([]T, error)
	// Create inserts a new aggregate at version 1, or ErrAlreadyExists.
	Create(ctx context.Context, entity T) error
	// Update writes the aggregate if its stored version equals
	// expectedVersion, bumping the version to expectedVersion+1. A drifted
	// version yields ErrConcurrencyConflict and leaves the store untouched.
	Update(ctx context.Context, entity T, expectedVersion int64) error
	// Apply is the projection write path: an upsert keyed by ID that only
	// overwrites when the incoming version is strictly newer than the stored
	// one. Stale and duplicate applications are no-ops, which makes event
	// handlers idempotent and safe under out-of-order delivery.
	Apply(ctx context.Context, entity T) error
}
