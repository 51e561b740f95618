// Package profiles owns the Profile aggregate. A profile is created and kept
// current by projecting user events; its email and role fields are an
// eventually-consistent copy of the identity service's data, written only by
// the projection handlers, never by a direct command. Bio, skills and rate
// are the profile's own fields, mutated through commands under the
// concurrency guard.
package profiles

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/bus"
	"github.com/taskhive/platform/internal/events"
	"github.com/taskhive/platform/internal/identity"
	"github.com/taskhive/platform/internal/projection"
	"github.com/taskhive/platform/internal/store"
)

// Profile is keyed by the user's ID. UserVersion records the version of the
// user event last folded in, so a stale or duplicate user event is a no-op
// even when it arrives after a newer one.
type Profile struct {
	store.Versioned
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	UserVersion int64    `json:"user_version"`
	Bio         string   `json:"bio"`
	Skills      []string `json:"skills"`
	HourlyRate  int64    `json:"hourly_rate"`
}

// Service implements profile commands and the user-event projections.
type Service struct {
	store   store.Store[*Profile]
	updated *bus.Publisher[events.ProfileUpdated]
	log     *zap.Logger
}

// New wires the service to its store and the bus.
func New(s store.Store[*Profile], b bus.Bus, log *zap.Logger) *Service {
	return &Service{
		store:   s,
		updated: bus.NewPublisher[events.ProfileUpdated](b, log),
		log:     log,
	}
}

// Listen binds the projection listeners on the service's queue group. The
// subscriptions run until stopped; all instances of this service share the
// queue, so each user event is folded by exactly one instance.
func (s *Service) Listen(ctx context.Context, b bus.Bus, queueGroup string) ([]bus.Subscription, error) {
	onCreated := bus.NewListener(b, queueGroup, s.log, projection.Merge(
		s.store,
		func(data events.UserCreated) string { return data.ID },
		func(data events.UserCreated) *Profile {
			return &Profile{
				Versioned:   store.Versioned{ID: data.ID},
				Email:       data.Email,
				Role:        data.Role,
				UserVersion: data.Version,
			}
		},
		func(current *Profile, data events.UserCreated) (*Profile, bool) {
			if data.Version <= current.UserVersion {
				return current, false
			}
			current.Email = data.Email
			current.Role = data.Role
			current.UserVersion = data.Version
			return current, true
		},
	))

	onUpdated := bus.NewListener(b, queueGroup, s.log, projection.Merge(
		s.store,
		func(data events.UserUpdated) string { return data.ID },
		func(data events.UserUpdated) *Profile {
			// A user:updated can arrive before the user:created that
			// logically preceded it; create the record from whichever event
			// shows up first.
			return &Profile{
				Versioned:   store.Versioned{ID: data.ID},
				Email:       data.Email,
				Role:        data.Role,
				UserVersion: data.Version,
			}
		},
		func(current *Profile, data events.UserUpdated) (*Profile, bool) {
			if data.Version <= current.UserVersion {
				return current, false
			}
			current.Email = data.Email
			current.Role = data.Role
			current.UserVersion = data.Version
			return current, true
		},
	))

	var subs []bus.Subscription
	for _, listen := range []func(context.Context) (bus.Subscription, error){onCreated.Listen, onUpdated.Listen} {
		sub, err := listen(ctx)
		if err != nil {
			for _, s := range subs {
				s.Stop()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// UpdateProfile changes the profile's own fields under the concurrency
// guard and publishes profile:updated with the new version.
func (s *Service) UpdateProfile(ctx context.Context, principal identity.Principal, userID, bio string, skills []string, hourlyRate int64, expectedVersion int64) (*Profile, error) {
	if principal.UserID != userID {
		return nil, fmt.Errorf("cannot modify another user's profile")
	}

	profile, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.Bio = bio
	profile.Skills = skills
	profile.HourlyRate = hourlyRate

	if err := s.store.Update(ctx, profile, expectedVersion); err != nil {
		return nil, err
	}

	if err := s.updated.Publish(ctx, events.ProfileUpdated{
		UserID:     profile.ID,
		Bio:        profile.Bio,
		Skills:     profile.Skills,
		HourlyRate: profile.HourlyRate,
		Version:    profile.Version,
	}); err != nil {
		return nil, err
	}
	return profile, nil
}

// Get returns a profile by user ID.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	return s.store.Get(ctx, userID)
}

// List returns all profiles.
func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	return s.store.List(ctx)
}
