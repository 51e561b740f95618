// Package events defines the wire contract shared by every service on the
// platform bus: the closed subject taxonomy, the event envelope, and the
// typed payload for each subject.
package events

import (
	"fmt"
	"strings"
)

// Subject identifies an event type. Its string value is the contract between
// publishers and listeners; adding a subject is additive, renaming or
// removing one is a breaking change requiring coordinated rollout.
type Subject string

const (
	SubjectUserCreated     Subject = "user:created"
	SubjectUserUpdated     Subject = "user:updated"
	SubjectProfileUpdated  Subject = "profile:updated"
	SubjectJobCreated      Subject = "job:created"
	SubjectJobUpdated      Subject = "job:updated"
	SubjectJobClosed       Subject = "job:closed"
	SubjectProposalCreated Subject = "proposal:created"
	SubjectProposalUpdated Subject = "proposal:updated"
)

var subjects = map[Subject]bool{
	SubjectUserCreated:     true,
	SubjectUserUpdated:     true,
	SubjectProfileUpdated:  true,
	SubjectJobCreated:      true,
	SubjectJobUpdated:      true,
	SubjectJobClosed:       true,
	SubjectProposalCreated: true,
	SubjectProposalUpdated: true,
}

// Valid reports whether s is part of the subject taxonomy.
func (s Subject) Valid() bool {
	return subjects[s]
}

func (s Subject) String() string {
	return string(s)
}

// Token returns the broker routing token for the subject. Subjects use the
// colon form on the wire envelope while the broker routes on dotted tokens,
// e.g. "user:created" -> "user.created".
func (s Subject) Token() string {
	return strings.ReplaceAll(string(s), ":", ".")
}

// ParseSubject converts a raw string into a Subject, rejecting anything
// outside the taxonomy.
func ParseSubject(raw string) (Subject, error) {
	s := Subject(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown subject: %q", raw)
	}
	return s, nil
}

// Subjects returns every subject in the taxonomy.
func Subjects() []Subject {
	out := make([]Subject, 0, len(subjects))
	for s := range subjects {
		out = append(out, s)
	}
	return out
}
