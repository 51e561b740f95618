package events

// Payload variants, one per subject. Every payload carries the owning
// aggregate's version at publish time so consumers can guard denormalized
// copies against out-of-order delivery.

// UserCreated is published by the identity service when a user registers.
type UserCreated struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Version int64  `json:"version"`
}

func (UserCreated) EventSubject() Subject { return SubjectUserCreated }

// UserUpdated is published by the identity service on email or role changes.
type UserUpdated struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Version int64  `json:"version"`
}

func (UserUpdated) EventSubject() Subject { return SubjectUserUpdated }

// ProfileUpdated is published by the profile service on direct profile
// commands. Mirrored user fields are never included; they travel on user
// events only.
type ProfileUpdated struct {
	UserID     string   `json:"userId"`
	Bio        string   `json:"bio"`
	Skills     []string `json:"skills"`
	HourlyRate int64    `json:"hourlyRate"`
	Version    int64    `json:"version"`
}

func (ProfileUpdated) EventSubject() Subject { return SubjectProfileUpdated }

// JobCreated is published by the jobs service when a client posts a job.
type JobCreated struct {
	ID          string `json:"id"`
	ClientID    string `json:"clientId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      int64  `json:"budget"`
	Version     int64  `json:"version"`
}

func (JobCreated) EventSubject() Subject { return SubjectJobCreated }

// JobUpdated is published by the jobs service on job edits.
type JobUpdated struct {
	ID          string `json:"id"`
	ClientID    string `json:"clientId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      int64  `json:"budget"`
	Version     int64  `json:"version"`
}

func (JobUpdated) EventSubject() Subject { return SubjectJobUpdated }

// JobClosed is the terminal-state event for a job. Jobs are never deleted on
// the bus; closing is modeled as a state change.
type JobClosed struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Version  int64  `json:"version"`
}

func (JobClosed) EventSubject() Subject { return SubjectJobClosed }

// ProposalCreated is published by the proposals service when a freelancer
// submits a proposal against an open job.
type ProposalCreated struct {
	ID           string `json:"id"`
	JobID        string `json:"jobId"`
	FreelancerID string `json:"freelancerId"`
	Rate         int64  `json:"rate"`
	Version      int64  `json:"version"`
}

func (ProposalCreated) EventSubject() Subject { return SubjectProposalCreated }

// ProposalUpdated is published by the proposals service on status changes,
// including withdrawal.
type ProposalUpdated struct {
	ID           string `json:"id"`
	JobID        string `json:"jobId"`
	FreelancerID string `json:"freelancerId"`
	Status       string `json:"status"`
	Version      int64  `json:"version"`
}

func (ProposalUpdated) EventSubject() Subject { return SubjectProposalUpdated }
