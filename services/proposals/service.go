// Package proposals owns the Proposal aggregate. It keeps a local, read-only
// mirror of each job (built solely from job events) so proposal commands can
// validate against job state without a synchronous call to the jobs service.
// The mirror is eventually consistent and never authoritative.
package proposals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/bus"
	"github.com/taskhive/platform/internal/events"
	"github.com/taskhive/platform/internal/identity"
	"github.com/taskhive/platform/internal/projection"
	"github.com/taskhive/platform/internal/store"
)

const (
	StatusPending   = "pending"
	StatusWithdrawn = "withdrawn"

	jobStatusOpen   = "open"
	jobStatusClosed = "closed"
)

// Proposal is the proposal aggregate.
type Proposal struct {
	store.Versioned
	JobID        string `json:"job_id"`
	FreelancerID string `json:"freelancer_id"`
	CoverLetter  string `json:"cover_letter"`
	Rate         int64  `json:"rate"`
	Status       string `json:"status"`
}

// JobRef is the mirrored copy of a job, keyed by job ID. Its version is the
// job's version at publish time; the projection only overwrites when an
// incoming event carries a newer one.
type JobRef struct {
	store.Versioned
	ClientID string `json:"client_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
}

// Service implements proposal commands and the job-event projections.
type Service struct {
	store   store.Store[*Proposal]
	jobs    store.Store[*JobRef]
	created *bus.Publisher[events.ProposalCreated]
	updated *bus.Publisher[events.ProposalUpdated]
	log     *zap.Logger
}

// New wires the service to its stores and the bus.
func New(s store.Store[*Proposal], jobs store.Store[*JobRef], b bus.Bus, log *zap.Logger) *Service {
	return &Service{
		store:   s,
		jobs:    jobs,
		created: bus.NewPublisher[events.ProposalCreated](b, log),
		updated: bus.NewPublisher[events.ProposalUpdated](b, log),
		log:     log,
	}
}

// Listen binds the job-mirror projection listeners on the service's queue
// group.
func (s *Service) Listen(ctx context.Context, b bus.Bus, queueGroup string) ([]bus.Subscription, error) {
	onCreated := bus.NewListener(b, queueGroup, s.log, projection.Mirror(s.jobs,
		func(data events.JobCreated) *JobRef {
			return &JobRef{
				Versioned: store.Versioned{ID: data.ID, Version: data.Version},
				ClientID:  data.ClientID,
				Title:     data.Title,
				Status:    jobStatusOpen,
			}
		}))

	onUpdated := bus.NewListener(b, queueGroup, s.log, projection.Mirror(s.jobs,
		func(data events.JobUpdated) *JobRef {
			return &JobRef{
				Versioned: store.Versioned{ID: data.ID, Version: data.Version},
				ClientID:  data.ClientID,
				Title:     data.Title,
				Status:    jobStatusOpen,
			}
		}))

	// job:closed carries no title, so the closed ref keeps the title from
	// whatever the mirror already holds. Apply still guards staleness by the
	// carried version.
	onClosed := bus.NewListener(b, queueGroup, s.log, func(ctx context.Context, data events.JobClosed, env events.Envelope) error {
		ref := &JobRef{
			Versioned: store.Versioned{ID: data.ID, Version: data.Version},
			ClientID:  data.ClientID,
			Status:    jobStatusClosed,
		}
		current, err := s.jobs.Get(ctx, data.ID)
		if err == nil {
			ref.Title = current.Title
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("read job mirror %s: %w", data.ID, err)
		}
		if err := s.jobs.Apply(ctx, ref); err != nil {
			return fmt.Errorf("apply %s projection: %w", env.Subject, err)
		}
		return nil
	})

	var subs []bus.Subscription
	for _, listen := range []func(context.Context) (bus.Subscription, error){onCreated.Listen, onUpdated.Listen, onClosed.Listen} {
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

// Create submits a proposal against a job the mirror believes is open. The
// mirror can lag the jobs service; a proposal slipping in against a
// just-closed job is an accepted consequence of eventual consistency, not a
// correctness bug.
func (s *Service) Create(ctx context.Context, principal identity.Principal, jobID, coverLetter string, rate int64) (*Proposal, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive")
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("unknown job %s", jobID)
		}
		return nil, err
	}
	if job.Status == jobStatusClosed {
		return nil, fmt.Errorf("job %s is closed", jobID)
	}
	if job.ClientID == principal.UserID {
		return nil, fmt.Errorf("cannot propose on your own job")
	}

	proposal := &Proposal{
		Versioned:    store.Versioned{ID: uuid.New().String()},
		JobID:        jobID,
		FreelancerID: principal.UserID,
		CoverLetter:  coverLetter,
		Rate:         rate,
		Status:       StatusPending,
	}
	if err := s.store.Create(ctx, proposal); err != nil {
		return nil, err
	}

	if err := s.created.Publish(ctx, events.ProposalCreated{
		ID:           proposal.ID,
		JobID:        proposal.JobID,
		FreelancerID: proposal.FreelancerID,
		Rate:         proposal.Rate,
		Version:      proposal.Version,
	}); err != nil {
		return nil, err
	}
	return proposal, nil
}

// Withdraw retracts a pending proposal under the concurrency guard.
func (s *Service) Withdraw(ctx context.Context, principal identity.Principal, id string, expectedVersion int64) (*Proposal, error) {
	proposal, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.FreelancerID != principal.UserID {
		return nil, fmt.Errorf("cannot withdraw another freelancer's proposal")
	}
	if proposal.Status == StatusWithdrawn {
		return proposal, nil
	}

	proposal.Status = StatusWithdrawn
	if err := s.store.Update(ctx, proposal, expectedVersion); err != nil {
		return nil, err
	}

	if err := s.updated.Publish(ctx, events.ProposalUpdated{
		ID:           proposal.ID,
		JobID:        proposal.JobID,
		FreelancerID: proposal.FreelancerID,
		Status:       proposal.Status,
		Version:      proposal.Version,
	}); err != nil {
		return nil, err
	}
	return proposal, nil
}

// Get returns a proposal by ID.
func (s *Service) Get(ctx context.Context, id string) (*Proposal, error) {
	return s.store.Get(ctx, id)
}

// List returns all proposals.
func (s *Service) List(ctx context.Context) ([]*Proposal, error) {
	return s.store.List(ctx)
}

// JobMirror returns the mirrored job record, for tests and diagnostics.
func (s *Service) JobMirror(ctx context.Context, jobID string) (*JobRef, error) {
	return s.jobs.Get(ctx, jobID)
}
