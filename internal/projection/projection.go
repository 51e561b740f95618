// Package projection builds the event handlers that materialize a service's
// local read models from consumed events. Redelivery is always possible, so
// every handler here is idempotent: writes are keyed by the event's natural
// identifier and guarded by the carried version, never blind inserts.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhive/platform/internal/events"
	"github.com/taskhive/platform/internal/store"
)

// Mirror returns a handler that maintains a pure replica of another service's
// aggregate. project maps the payload to the local copy, carrying the
// publisher's version; the store's Apply only overwrites when that version is
// strictly newer, so duplicates and out-of-order deliveries are no-ops.
func Mirror[T events.Payload, E store.Entity](s store.Store[E], project func(T) E) func(ctx context.Context, data T, env events.Envelope) error {
	return func(ctx context.Context, data T, env events.Envelope) error {
		entity := project(data)
		if err := s.Apply(ctx, entity); err != nil {
			return fmt.Errorf("apply %s projection: %w", env.Subject, err)
		}
		return nil
	}
}

// Merge returns a handler that folds an event into a record that also has a
// life of its own (direct commands), creating it when absent.
//
//   - key extracts the record ID from the payload.
//   - init builds the record for a first-seen key.
//   - fold merges the payload into the current record, returning false to
//     skip a stale or duplicate event. fold must check the carried version
//     against whatever copy-version field the record keeps.
//
// The merged write goes through the store's concurrency guard; a conflict
// with a racing command surfaces as an error, the message stays unacked, and
// the redelivery retries against the fresh record.
func Merge[T events.Payload, E store.Entity](s store.Store[E], key func(T) string, init func(T) E, fold func(current E, data T) (E, bool)) func(ctx context.Context, data T, env events.Envelope) error {
	return func(ctx context.Context, data T, env events.Envelope) error {
		current, err := s.Get(ctx, key(data))
		if errors.Is(err, store.ErrNotFound) {
			if err := s.Create(ctx, init(data)); err != nil {
				if errors.Is(err, store.ErrAlreadyExists) {
					// Lost a create race with a duplicate delivery; the
					// redelivery will take the merge path.
					return fmt.Errorf("create race on %s projection: %w", env.Subject, err)
				}
				return fmt.Errorf("create %s projection: %w", env.Subject, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s projection: %w", env.Subject, err)
		}

		merged, changed := fold(current, data)
		if !changed {
			return nil
		}
		if err := s.Update(ctx, merged, current.GetVersion()); err != nil {
			return fmt.Errorf("write %s projection: %w", env.Subject, err)
		}
		return nil
	}
}
