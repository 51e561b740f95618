// Package users owns the User aggregate: registration, email/role changes,
// and token issuance. Every successful mutation bumps the aggregate version
// and publishes the corresponding user event.
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/bus"
	"github.com/taskhive/platform/internal/events"
	"github.com/taskhive/platform/internal/identity"
	"github.com/taskhive/platform/internal/store"
)

const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"

	tokenTTL = 24 * time.Hour
)

// User is the identity aggregate. It is owned exclusively by this service;
// other services only ever see it through user events.
type User struct {
	store.Versioned
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Service implements the identity commands.
type Service struct {
	store     store.Store[*User]
	created   *bus.Publisher[events.UserCreated]
	updated   *bus.Publisher[events.UserUpdated]
	jwtSecret []byte
	log       *zap.Logger
}

// New wires the service to its store and the bus.
func New(s store.Store[*User], b bus.Bus, jwtSecret []byte, log *zap.Logger) *Service {
	return &Service{
		store:     s,
		created:   bus.NewPublisher[events.UserCreated](b, log),
		updated:   bus.NewPublisher[events.UserUpdated](b, log),
		jwtSecret: jwtSecret,
		log:       log,
	}
}

// Register creates a user and publishes user:created. The store write and
// the publish are two separate steps: a crash in between durably commits the
// user without the event. That consistency window is a documented platform
// property (no outbox), not a bug in this service.
func (s *Service) Register(ctx context.Context, email, role string) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if role != RoleClient && role != RoleFreelancer {
		return nil, fmt.Errorf("role must be %q or %q", RoleClient, RoleFreelancer)
	}

	user := &User{
		Versioned: store.Versioned{ID: uuid.New().String()},
		Email:     email,
		Role:      role,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.created.Publish(ctx, events.UserCreated{
		ID:      user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Version: user.Version,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Update changes a user's email or role. The caller presents the version it
// read; a drifted version fails with store.ErrConcurrencyConflict and the
// caller must re-read and retry.
func (s *Service) Update(ctx context.Context, id, email, role string, expectedVersion int64) (*User, error) {
	user, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if email != "" {
		user.Email = email
	}
	if role != "" {
		if role != RoleClient && role != RoleFreelancer {
			return nil, fmt.Errorf("role must be %q or %q", RoleClient, RoleFreelancer)
		}
		user.Role = role
	}

	if err := s.store.Update(ctx, user, expectedVersion); err != nil {
		return nil, err
	}

	if err := s.updated.Publish(ctx, events.UserUpdated{
		ID:      user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Version: user.Version,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.Get(ctx, id)
}

// IssueToken signs a bearer token for the user. The gateway verifies it at
// the edge; internal services only ever see the derived headers.
func (s *Service) IssueToken(ctx context.Context, id string) (string, error) {
	user, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return identity.Sign(identity.Claims{UserID: user.ID, Role: user.Role}, s.jwtSecret, tokenTTL)
}
