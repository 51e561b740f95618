package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Memory is an in-memory Store implementation, used by tests and local
// development. Entities are copied at the boundary in both directions:
// callers hold pointers, and handing out or retaining the stored pointer
// would let a caller's later mutation reach the store without going through
// the version check.
type Memory[T Entity] struct {
	mu   sync.RWMutex
	data map[string]T
}

// NewMemory creates an empty in-memory store.
func NewMemory[T Entity]() *Memory[T] {
	return &Memory[T]{data: make(map[string]T)}
}

func (s *Memory[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.data[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return clone(entity)
}

func (s *Memory[T]) List(ctx context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make([]T, 0, len(s.data))
	for _, entity := range s.data {
		copied, err := clone(entity)
		if err != nil {
			return nil, err
		}
		entities = append(entities, copied)
	}
	return entities, nil
}

func (s *Memory[T]) Create(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entity.GetID()
	if _, exists := s.data[id]; exists {
		return ErrAlreadyExists
	}

	entity.SetVersion(1)
	entity.SetTimestamps(time.Now().UTC())

	copied, err := clone(entity)
	if err != nil {
		return err
	}
	s.data[id] = copied
	return nil
}

func (s *Memory[T]) Update(ctx context.Context, entity T, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entity.GetID()
	current, exists := s.data[id]
	if !exists {
		return ErrNotFound
	}
	if current.GetVersion() != expectedVersion {
		return ErrConcurrencyConflict
	}

	entity.SetVersion(expectedVersion + 1)
	entity.SetTimestamps(time.Now().UTC())

	copied, err := clone(entity)
	if err != nil {
		return err
	}
	s.data[id] = copied
	return nil
}

func (s *Memory[T]) Apply(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entity.GetID()
	if current, exists := s.data[id]; exists && current.GetVersion() >= entity.GetVersion() {
		return nil
	}

	entity.SetTimestamps(time.Now().UTC())

	copied, err := clone(entity)
	if err != nil {
		return err
	}
	s.data[id] = copied
	return nil
}

// clone deep-copies an entity through its JSON form, the same representation
// the Postgres store persists.
func clone[T Entity](entity T) (T, error) {
	var zero T

	data, err := json.Marshal(entity)
	if err != nil {
		return zero, fmt.Errorf("clone entity %s: %w", entity.GetID(), err)
	}

	copied, ok := reflect.New(reflect.ValueOf(entity).Elem().Type()).Interface().(T)
	if !ok {
		return zero, fmt.Errorf("clone entity %s: unexpected type", entity.GetID())
	}
	if err := json.Unmarshal(data, copied); err != nil {
		return zero, fmt.Errorf("clone entity %s: %w", entity.GetID(), err)
	}
	return copied, nil
}
