package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/events"
)

func publishUser(t *testing.T, b Bus, id string, version int64) {
	t.Helper()
	env, err := events.NewEnvelope(events.UserCreated{ID: id, Email: id + "@example.com", Role: "client", Version: version})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), env))
}

func TestMemoryQueueGroupSharesWork(t *testing.T) {
	b := NewMemory(zap.NewNop())
	ctx := context.Background()

	counts := make([]int, 3)
	for i := range counts {
		i := i
		_, err := b.Subscribe(ctx, Binding{
			Subject: events.SubjectUserCreated,
			Queue:   "profiles",
			Handler: func(context.Context, events.Envelope) error {
				counts[i]++
				return nil
			},
		})
		require.NoError(t, err)
	}

	for n := 0; n < 9; n++ {
		publishUser(t, b, fmt.Sprintf("u%d", n), 1)
	}

	total := 0
	for _, c := range counts {
		total += c
		assert.Equal(t, 3, c, "round-robin should spread work evenly")
	}
	assert.Equal(t, 9, total, "each message handled exactly once per queue group")
}

func TestMemorySeparateQueuesEachReceive(t *testing.T) {
	b := NewMemory(zap.NewNop())
	ctx := context.Background()

	var profiles, search int
	_, err := b.Subscribe(ctx, Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error { profiles++; return nil },
	})
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "search",
		Handler: func(context.Context, events.Envelope) error { search++; return nil },
	})
	require.NoError(t, err)

	publishUser(t, b, "u1", 1)

	assert.Equal(t, 1, profiles)
	assert.Equal(t, 1, search)
}

func TestMemoryRedeliversOnHandlerError(t *testing.T) {
	b := NewMemory(zap.NewNop())

	attempts := 0
	_, err := b.Subscribe(context.Background(), Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error {
			attempts++
			if attempts < 2 {
				return errors.New("transient")
			}
			return nil
		},
	})
	require.NoError(t, err)

	publishUser(t, b, "u1", 1)
	assert.Equal(t, 2, attempts, "failed delivery should be retried")
}

func TestMemoryDropsMalformed(t *testing.T) {
	b := NewMemory(zap.NewNop())

	attempts := 0
	_, err := b.Subscribe(context.Background(), Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error {
			attempts++
			return fmt.Errorf("%w: bad shape", ErrMalformed)
		},
	})
	require.NoError(t, err)

	publishUser(t, b, "u1", 1)
	assert.Equal(t, 1, attempts, "malformed messages are not redelivered")
}

func TestMemoryStopDetachesSubscriber(t *testing.T) {
	b := NewMemory(zap.NewNop())
	ctx := context.Background()

	handled := 0
	sub, err := b.Subscribe(ctx, Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error { handled++; return nil },
	})
	require.NoError(t, err)

	publishUser(t, b, "u1", 1)
	sub.Stop()
	publishUser(t, b, "u2", 1)

	assert.Equal(t, 1, handled)
}

func TestMemoryRejectsBadBindings(t *testing.T) {
	b := NewMemory(zap.NewNop())
	ctx := context.Background()
	noop := func(context.Context, events.Envelope) error { return nil }

	_, err := b.Subscribe(ctx, Binding{Subject: "user:deleted", Queue: "q", Handler: noop})
	assert.Error(t, err)
	_, err = b.Subscribe(ctx, Binding{Subject: events.SubjectUserCreated, Queue: "", Handler: noop})
	assert.Error(t, err)
	_, err = b.Subscribe(ctx, Binding{Subject: events.SubjectUserCreated, Queue: "q"})
	assert.Error(t, err)
}

func TestTypedPublisherAndListener(t *testing.T) {
	b := NewMemory(zap.NewNop())
	ctx := context.Background()

	var got events.JobCreated
	listener := NewListener(b, "proposals", zap.NewNop(), func(_ context.Context, data events.JobCreated, env events.Envelope) error {
		got = data
		assert.Equal(t, events.SubjectJobCreated, env.Subject)
		return nil
	})
	sub, err := listener.Listen(ctx)
	require.NoError(t, err)
	defer sub.Stop()

	pub := NewPublisher[events.JobCreated](b, zap.NewNop())
	require.NoError(t, pub.Publish(ctx, events.JobCreated{ID: "j1", ClientID: "u1", Title: "site", Budget: 500, Version: 1}))

	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, int64(1), got.Version)
}
