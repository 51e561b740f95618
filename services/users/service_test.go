package users

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

func captureEvents[T events.Payload](t *testing.T, b bus.Bus) *[]T {
	t.Helper()
	captured := &[]T{}
	listener := bus.NewListener(b, "capture", zap.NewNop(), func(_ context.Context, data T, _ events.Envelope) error {
		*captured = append(*captured, data)
		return nil
	})
	_, err := listener.Listen(context.Background())
	require.NoError(t, err)
	return captured
}

func TestRegisterPublishesUserCreated(t *testing.T) {
	b := bus.NewMemory(zap.NewNop())
	svc := New(store.NewMemory[*User](), b, []byte("test-secret"), zap.NewNop())
	created := captureEvents[events.UserCreated](t, b)

	user, err := svc.Register(context.Background(), "alice@example.com", RoleFreelancer)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, int64(1), user.Version)

	require.Len(t, *created, 1)
	got := (*created)[0]
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, RoleFreelancer, got.Role)
	assert.Equal(t, int64(1), got.Version)
}

func TestRegisterValidation(t *testing.T) {
	b := bus.NewMemory(zap.NewNop())
	svc := New(store.NewMemory[*User](), b, []byte("test-secret"), zap.NewNop())

	_, err := svc.Register(context.Background(), "", RoleClient)
	assert.Error(t, err)

	_, err = svc.Register(context.Background(), "a@b.com", "admin")
	assert.Error(t, err)
}

func TestUpdateBumpsVersionAndPublishes(t *testing.T) {
	b := bus.NewMemory(zap.NewNop())
	svc := New(store.NewMemory[*User](), b, []byte("test-secret"), zap.NewNop())
	updated := captureEvents[events.UserUpdated](t, b)

	user, err := svc.Register(context.Background(), "alice@example.com", RoleFreelancer)
	require.NoError(t, err)

	after, err := svc.Update(context.Background(), user.ID, "alice@new.com", "", user.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Version)
	assert.Equal(t, "alice@new.com", after.Email)
	assert.Equal(t, RoleFreelancer, after.Role, "unset role leaves the field alone")

	require.Len(t, *updated, 1)
	assert.Equal(t, int64(2), (*updated)[0].Version)
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	b := bus.NewMemory(zap.NewNop())
	svc := New(store.NewMemory[*User](), b, []byte("test-secret"), zap.NewNop())

	user, err := svc.Register(context.Background(), "alice@example.com", RoleClient)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), user.ID, "first@new.com", "", user.Version)
	require.NoError(t, err)

	// Second writer still holds version 1.
	_, err = svc.Update(context.Background(), user.ID, "second@new.com", "", user.Version)
	assert.ErrorIs(t, err, store.ErrConcurrencyConflict)

	got, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "first@new.com", got.Email)
	assert.Equal(t, int64(2), got.Version)
}

func TestIssueToken(t *testing.T) {
	b := bus.NewMemory(zap.NewNop())
	svc := New(store.NewMemory[*User](), b, []byte("test-secret"), zap.NewNop())

	user, err := svc.Register(context.Background(), "alice@example.com", RoleClient)
	require.NoError(t, err)

	token, err := svc.IssueToken(context.Background(), user.ID)
	require.NoError(t, err)

	claims, err := identity.Verify(token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, RoleClient, claims.Role)

	_, err = svc.IssueToken(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
