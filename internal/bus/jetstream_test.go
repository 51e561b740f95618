package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/events"
)

// fakeMsg satisfies jetstream.Msg so the delivery path can be exercised
// without a broker.
type fakeMsg struct {
	data   []byte
	acked  bool
	termed bool
	naked  bool
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) { return &jetstream.MsgMetadata{}, nil }
func (m *fakeMsg) Data() []byte                              { return m.data }
func (m *fakeMsg) Headers() nats.Header                      { return nil }
func (m *fakeMsg) Subject() string                           { return "taskhive.user.created" }
func (m *fakeMsg) Reply() string                             { return "" }
func (m *fakeMsg) Ack() error                                { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error           { m.acked = true; return nil }
func (m *fakeMsg) Nak() error                                { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error          { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error                         { return nil }
func (m *fakeMsg) Term() error                               { m.termed = true; return nil }
func (m *fakeMsg) TermWithReason(string) error               { m.termed = true; return nil }

func newTestJetStream(published *[]string) *JetStream {
	b := &JetStream{log: zap.NewNop()}
	b.publishRaw = func(_ context.Context, subject string, _ []byte) error {
		*published = append(*published, subject)
		return nil
	}
	return b
}

func envelopeBytes(t *testing.T, p events.Payload) []byte {
	t.Helper()
	env, err := events.NewEnvelope(p)
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestHandleAcksOnSuccess(t *testing.T) {
	var published []string
	b := newTestJetStream(&published)

	var handled int
	binding := Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error {
			handled++
			return nil
		},
	}

	msg := &fakeMsg{data: envelopeBytes(t, events.UserCreated{ID: "u1", Email: "a@b.com", Role: "client", Version: 1})}
	b.handle(context.Background(), binding, msg)

	assert.Equal(t, 1, handled)
	assert.True(t, msg.acked)
	assert.False(t, msg.termed)
	assert.Empty(t, published)
}

func TestHandleLeavesUnackedOnHandlerError(t *testing.T) {
	var published []string
	b := newTestJetStream(&published)

	binding := Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error {
			return errors.New("projection store down")
		},
	}

	msg := &fakeMsg{data: envelopeBytes(t, events.UserCreated{ID: "u1", Email: "a@b.com", Role: "client", Version: 1})}
	b.handle(context.Background(), binding, msg)

	assert.False(t, msg.acked, "message must stay unacknowledged for redelivery")
	assert.False(t, msg.termed)
	assert.False(t, msg.naked, "redelivery relies on the ack deadline, not an explicit nak")
	assert.Empty(t, published)
}

func TestHandleKeepsMessageWhenDeadLetterPublishFails(t *testing.T) {
	b := &JetStream{log: zap.NewNop()}
	b.publishRaw = func(context.Context, string, []byte) error {
		return errors.New("broker unavailable")
	}

	binding := Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error { return nil },
	}

	msg := &fakeMsg{data: []byte("not json")}
	b.handle(context.Background(), binding, msg)

	assert.False(t, msg.termed, "terminating before the copy lands would lose the message entirely")
	assert.False(t, msg.acked)
}

func TestHandleDeadLettersUndecodableMessage(t *testing.T) {
	var published []string
	b := newTestJetStream(&published)

	binding := Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error {
			t.Fatal("handler must not run for garbage")
			return nil
		},
	}

	msg := &fakeMsg{data: []byte("not json")}
	b.handle(context.Background(), binding, msg)

	assert.True(t, msg.termed)
	assert.False(t, msg.acked)
	require.Len(t, published, 1)
	assert.Equal(t, "taskhive.dlq.user.created", published[0])
}

func TestHandleDeadLettersOnMalformedPayload(t *testing.T) {
	var published []string
	b := newTestJetStream(&published)

	binding := Binding{
		Subject: events.SubjectUserCreated,
		Queue:   "profiles",
		Handler: func(context.Context, events.Envelope) error {
			return fmt.Errorf("%w: bad payload shape", ErrMalformed)
		},
	}

	msg := &fakeMsg{data: envelopeBytes(t, events.UserCreated{ID: "u1", Email: "a@b.com", Role: "client", Version: 1})}
	b.handle(context.Background(), binding, msg)

	assert.True(t, msg.termed)
	assert.False(t, msg.acked)
	require.Len(t, published, 1)
	assert.Equal(t, "taskhive.dlq.user.created", published[0])
}

func TestPublishRejectsInvalidEnvelope(t *testing.T) {
	var published []string
	b := newTestJetStream(&published)

	err := b.Publish(context.Background(), events.Envelope{Subject: "user:created"})
	assert.Error(t, err)
	assert.Empty(t, published)
}

func TestPublishRoutesBySubject(t *testing.T) {
	var published []string
	b := newTestJetStream(&published)

	env, err := events.NewEnvelope(events.JobClosed{ID: "j1", ClientID: "u1", Version: 2})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), env))
	require.Len(t, published, 1)
	assert.Equal(t, "taskhive.job.closed", published[0])
}

func TestBrokerSubjectNames(t *testing.T) {
	assert.Equal(t, "taskhive.proposal.updated", BrokerSubject(events.SubjectProposalUpdated))
	assert.Equal(t, "taskhive.dlq.proposal.updated", DeadLetterSubject(events.SubjectProposalUpdated))
	assert.Equal(t, "profiles-user-created", durableName("profiles", events.SubjectUserCreated))
}
