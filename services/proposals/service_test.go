package proposals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/bus"
	"github.com/taskhive/platform/internal/events"
	"github.com/taskhive/platform/internal/identity"
	"github.com/taskhive/platform/internal/store"
)

var freelancer = identity.Principal{UserID: "freelancer-1", Role: "freelancer"}

func newListeningService(t *testing.T) (*Service, *bus.Memory) {
	t.Helper()
	b := bus.NewMemory(zap.NewNop())
	svc := New(store.NewMemory[*Proposal](), store.NewMemory[*JobRef](), b, zap.NewNop())

	subs, err := svc.Listen(context.Background(), b, "proposals")
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, sub := range subs {
			sub.Stop()
		}
	})
	return svc, b
}

func publish(t *testing.T, b bus.Bus, p events.Payload) {
	t.Helper()
	env, err := events.NewEnvelope(p)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), env))
}

func TestJobMirrorFollowsJobEvents(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})

	ref, err := svc.JobMirror(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobStatusOpen, ref.Status)
	assert.Equal(t, "Build a site", ref.Title)
	assert.Equal(t, int64(1), ref.Version)

	publish(t, b, events.JobUpdated{ID: "j1", ClientID: "client-1", Title: "Build a bigger site", Budget: 900, Version: 2})

	ref, err = svc.JobMirror(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "Build a bigger site", ref.Title)
	assert.Equal(t, int64(2), ref.Version)
}

func TestJobMirrorIgnoresStaleEvents(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobUpdated{ID: "j1", ClientID: "client-1", Title: "newer", Budget: 900, Version: 2})
	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "older", Budget: 500, Version: 1})

	ref, err := svc.JobMirror(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "newer", ref.Title)
	assert.Equal(t, int64(2), ref.Version)
}

func TestJobMirrorKeepsTitleOnClose(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})
	publish(t, b, events.JobClosed{ID: "j1", ClientID: "client-1", Version: 2})

	ref, err := svc.JobMirror(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobStatusClosed, ref.Status)
	assert.Equal(t, "Build a site", ref.Title)
	assert.Equal(t, int64(2), ref.Version)
}

func TestCreateAgainstOpenJob(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})

	proposal, err := svc.Create(ctx, freelancer, "j1", "I can do this", 80)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, proposal.Status)
	assert.Equal(t, int64(1), proposal.Version)
	assert.Equal(t, freelancer.UserID, proposal.FreelancerID)
}

func TestCreateRejectsClosedJob(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})
	publish(t, b, events.JobClosed{ID: "j1", ClientID: "client-1", Version: 2})

	_, err := svc.Create(ctx, freelancer, "j1", "too late", 80)
	assert.Error(t, err)
}

func TestCreateRejectsUnknownJob(t *testing.T) {
	svc, _ := newListeningService(t)

	_, err := svc.Create(context.Background(), freelancer, "nope", "hi", 80)
	assert.Error(t, err)
}

func TestCreateRejectsOwnJob(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})

	_, err := svc.Create(ctx, identity.Principal{UserID: "client-1"}, "j1", "self deal", 80)
	assert.Error(t, err)
}

func TestWithdraw(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	var published []events.ProposalUpdated
	listener := bus.NewListener(b, "capture", zap.NewNop(), func(_ context.Context, data events.ProposalUpdated, _ events.Envelope) error {
		published = append(published, data)
		return nil
	})
	_, err := listener.Listen(ctx)
	require.NoError(t, err)

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})

	proposal, err := svc.Create(ctx, freelancer, "j1", "hi", 80)
	require.NoError(t, err)

	withdrawn, err := svc.Withdraw(ctx, freelancer, proposal.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusWithdrawn, withdrawn.Status)
	assert.Equal(t, int64(2), withdrawn.Version)

	require.Len(t, published, 1)
	assert.Equal(t, StatusWithdrawn, published[0].Status)

	// Withdrawing again is a no-op and publishes nothing.
	again, err := svc.Withdraw(ctx, freelancer, proposal.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
	assert.Len(t, published, 1)
}

func TestWithdrawOwnerOnly(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})

	proposal, err := svc.Create(ctx, freelancer, "j1", "hi", 80)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, identity.Principal{UserID: "other"}, proposal.ID, 1)
	assert.Error(t, err)
}

func TestWithdrawConflict(t *testing.T) {
	svc, b := newListeningService(t)
	ctx := context.Background()

	publish(t, b, events.JobCreated{ID: "j1", ClientID: "client-1", Title: "Build a site", Budget: 500, Version: 1})

	proposal, err := svc.Create(ctx, freelancer, "j1", "hi", 80)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, freelancer, proposal.ID, 99)
	assert.ErrorIs(t, err, store.ErrConcurrencyConflict)
}
