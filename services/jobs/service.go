// Package jobs owns the Job aggregate: posting, editing and closing jobs.
// Closing is the terminal state; jobs are never deleted through the bus.
package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/bus"
	"github.com/taskhive/platform/internal/events"
	"github.com/taskhive/platform/internal/identity"
	"github.com/taskhive/platform/internal/store"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Job is the job aggregate, owned exclusively by this service.
type Job struct {
	store.Versioned
	ClientID    string `json:"client_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      int64  `json:"budget"`
	Status      string `json:"status"`
}

// Service implements the job commands.
type Service struct {
	store   store.Store[*Job]
	created *bus.Publisher[events.JobCreated]
	updated *bus.Publisher[events.JobUpdated]
	closed  *bus.Publisher[events.JobClosed]
	log     *zap.Logger
}

// New wires the service to its store and the bus.
func New(s store.Store[*Job], b bus.Bus, log *zap.Logger) *Service {
	return &Service{
		store:   s,
		created: bus.NewPublisher[events.JobCreated](b, log),
		updated: bus.NewPublisher[events.JobUpdated](b, log),
		closed:  bus.NewPublisher[events.JobClosed](b, log),
		log:     log,
	}
}

// Create posts a new job for the authenticated client.
func (s *Service) Create(ctx context.Context, principal identity.Principal, title, description string, budget int64) (*Job, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive")
	}

	job := &Job{
		Versioned:   store.Versioned{ID: uuid.New().String()},
		ClientID:    principal.UserID,
		Title:       title,
		Description: description,
		Budget:      budget,
		Status:      StatusOpen,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.created.Publish(ctx, events.JobCreated{
		ID:          job.ID,
		ClientID:    job.ClientID,
		Title:       job.Title,
		Description: job.Description,
		Budget:      job.Budget,
		Version:     job.Version,
	}); err != nil {
		return nil, err
	}
	return job, nil
}

// Update edits an open job under the concurrency guard.
func (s *Service) Update(ctx context.Context, principal identity.Principal, id, title, description string, budget int64, expectedVersion int64) (*Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.ClientID != principal.UserID {
		return nil, fmt.Errorf("cannot modify another client's job")
	}
	if job.Status == StatusClosed {
		return nil, fmt.Errorf("job is closed")
	}

	if title != "" {
		job.Title = title
	}
	if description != "" {
		job.Description = description
	}
	if budget > 0 {
		job.Budget = budget
	}

	if err := s.store.Update(ctx, job, expectedVersion); err != nil {
		return nil, err
	}

	if err := s.updated.Publish(ctx, events.JobUpdated{
		ID:          job.ID,
		ClientID:    job.ClientID,
		Title:       job.Title,
		Description: job.Description,
		Budget:      job.Budget,
		Version:     job.Version,
	}); err != nil {
		return nil, err
	}
	return job, nil
}

// Close moves the job to its terminal state and publishes job:closed.
func (s *Service) Close(ctx context.Context, principal identity.Principal, id string, expectedVersion int64) (*Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.ClientID != principal.UserID {
		return nil, fmt.Errorf("cannot close another client's job")
	}
	if job.Status == StatusClosed {
		return job, nil
	}

	job.Status = StatusClosed
	if err := s.store.Update(ctx, job, expectedVersion); err != nil {
		return nil, err
	}

	if err := s.closed.Publish(ctx, events.JobClosed{
		ID:       job.ID,
		ClientID: job.ClientID,
		Version:  job.Version,
	}); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.Get(ctx, id)
}

// List returns all jobs.
func (s *Service) List(ctx context.Context) ([]*Job, error) {
	return s.store.List(ctx)
}
