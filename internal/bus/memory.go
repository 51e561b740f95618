package bus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/events"
)

const memoryMaxDeliver = 3

// Memory is an in-process Bus used by tests and single-process development.
// It keeps the broker's queue-group semantics: every queue bound to a subject
// receives each message, and within a queue exactly one subscriber handles
// it (round-robin). Delivery is synchronous inside Publish, which makes test
// assertions deterministic. A failed handler is redelivered up to
// memoryMaxDeliver times, mirroring at-least-once delivery; a malformed
// message is dropped after the first attempt.
type Memory struct {
	mu     sync.Mutex
	queues map[events.Subject]map[string]*memoryQueue
	log    *zap.Logger
}

type memoryQueue struct {
	handlers map[int]func(ctx context.Context, env events.Envelope) error
	order    []int
	nextID   int
	rr       int
}

// NewMemory creates an empty in-process bus.
func NewMemory(log *zap.Logger) *Memory {
	return &Memory{
		queues: make(map[events.Subject]map[string]*memoryQueue),
		log:    log,
	}
}

func (b *Memory) Publish(ctx context.Context, env events.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	groups := make([]*memoryQueue, 0, len(b.queues[env.Subject]))
	for _, q := range b.queues[env.Subject] {
		groups = append(groups, q)
	}
	b.mu.Unlock()

	for _, q := range groups {
		b.deliver(ctx, q, env)
	}
	return nil
}

func (b *Memory) deliver(ctx context.Context, q *memoryQueue, env events.Envelope) {
	for attempt := 1; attempt <= memoryMaxDeliver; attempt++ {
		b.mu.Lock()
		if len(q.order) == 0 {
			b.mu.Unlock()
			return
		}
		id := q.order[q.rr%len(q.order)]
		handler := q.handlers[id]
		q.rr++
		b.mu.Unlock()

		err := handler(ctx, env)
		if err == nil {
			return
		}
		if errors.Is(err, ErrMalformed) {
			b.log.Error("malformed message dropped",
				zap.String("subject", env.Subject.String()),
				zap.Error(err),
			)
			return
		}
		b.log.Warn("redelivering after handler failure",
			zap.String("subject", env.Subject.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

func (b *Memory) Subscribe(ctx context.Context, binding Binding) (Subscription, error) {
	if !binding.Subject.Valid() {
		return nil, errors.New("unknown subject")
	}
	if binding.Queue == "" {
		return nil, errors.New("queue group name required")
	}
	if binding.Handler == nil {
		return nil, errors.New("handler required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bySubject, ok := b.queues[binding.Subject]
	if !ok {
		bySubject = make(map[string]*memoryQueue)
		b.queues[binding.Subject] = bySubject
	}
	q, ok := bySubject[binding.Queue]
	if !ok {
		q = &memoryQueue{handlers: make(map[int]func(ctx context.Context, env events.Envelope) error)}
		bySubject[binding.Queue] = q
	}

	id := q.nextID
	q.nextID++
	q.handlers[id] = binding.Handler
	q.order = append(q.order, id)

	var once sync.Once
	return subscriptionFunc(func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(q.handlers, id)
			kept := q.order[:0]
			for _, other := range q.order {
				if other != id {
					kept = append(kept, other)
				}
			}
			q.order = kept
		})
	}), nil
}
