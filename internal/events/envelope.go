package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps an event payload for transport over the bus. Envelopes are
// immutable once published; consumers must never mutate one in place.
type Envelope struct {
	// ID uniquely identifies this envelope across the platform.
	ID string `json:"id"`
	// Subject identifies the event type and doubles as the routing key.
	Subject Subject `json:"subject"`
	// OccurredAt is when the publishing service produced the event.
	OccurredAt time.Time `json:"occurred_at"`
	// Data is the subject-specific JSON payload.
	Data json.RawMessage `json:"data"`
}

// Validate checks the envelope against the wire contract.
func (e Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope id is empty")
	}
	if !e.Subject.Valid() {
		return fmt.Errorf("unknown subject: %q", e.Subject)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("envelope occurred_at is zero")
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope data is empty")
	}
	return nil
}

// Payload is implemented by every payload variant in the taxonomy, tying the
// payload shape to exactly one subject at compile time.
type Payload interface {
	EventSubject() Subject
}

// NewEnvelope serializes a payload under its declared subject and stamps
// identity and time.
func NewEnvelope(p Payload) (Envelope, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", p.EventSubject(), err)
	}
	return Envelope{
		ID:         uuid.New().String(),
		Subject:    p.EventSubject(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

// Decode deserializes the envelope data into the payload type for the
// envelope's subject. A decode failure is fatal to the message, never
// retriable (see bus dead-lettering).
func Decode[T Payload](e Envelope) (T, error) {
	var out T
	if e.Subject != out.EventSubject() {
		return out, fmt.Errorf("subject mismatch: envelope %q, payload %q", e.Subject, out.EventSubject())
	}
	if err := json.Unmarshal(e.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", e.Subject, err)
	}
	return out, nil
}
