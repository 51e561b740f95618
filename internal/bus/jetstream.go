package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/events"
	"github.com/taskhive/platform/internal/metrics"
)

const (
	// StreamName is the single shared exchange for the whole platform.
	StreamName = "TASKHIVE_EVENTS"

	subjectPrefix = "taskhive"
	dlqPrefix     = "taskhive.dlq"
)

// BrokerSubject maps a taxonomy subject to its broker routing key.
func BrokerSubject(s events.Subject) string {
	return subjectPrefix + "." + s.Token()
}

// DeadLetterSubject maps a taxonomy subject to its dead-letter routing key.
func DeadLetterSubject(s events.Subject) string {
	return dlqPrefix + "." + s.Token()
}

// JetStream is the NATS JetStream Bus implementation. The stream is the
// shared topic exchange; each Binding becomes a durable consumer named by its
// queue group with explicit acks, so all instances of one service share the
// queue and each message is handled by exactly one of them.
type JetStream struct {
	js      jetstream.JetStream
	stream  jetstream.Stream
	log     *zap.Logger
	metrics *metrics.Metrics

	// publishRaw is js.Publish behind a seam so the delivery path is unit
	// testable without a broker.
	publishRaw func(ctx context.Context, subject string, data []byte) error
}

// NewJetStream builds a Bus over an injected NATS connection and ensures the
// shared stream exists (idempotent declare). Dead-letter subjects live on the
// same stream under the dlq prefix.
func NewJetStream(ctx context.Context, nc *nats.Conn, log *zap.Logger, m *metrics.Metrics) (*JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subjectPrefix + ".>"},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}

	b := &JetStream{js: js, stream: stream, log: log, metrics: m}
	b.publishRaw = func(ctx context.Context, subject string, data []byte) error {
		_, err := js.Publish(ctx, subject, data)
		return err
	}
	return b, nil
}

// Publish routes the envelope through the stream using the subject as the
// routing key. It returns once the broker has accepted the message; it does
// not wait for any consumer. A down broker yields a transient error and the
// caller decides whether to retry, buffer, or drop.
func (b *JetStream) Publish(ctx context.Context, env events.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := b.publishRaw(ctx, BrokerSubject(env.Subject), data); err != nil {
		return fmt.Errorf("broker publish %s: %w", env.Subject, err)
	}
	b.metrics.RecordEventPublished(env.Subject.String())
	return nil
}

// Subscribe declares (or reuses) the durable consumer for the binding's queue
// group, filtered to the binding's subject, and starts delivering.
func (b *JetStream) Subscribe(ctx context.Context, binding Binding) (Subscription, error) {
	if !binding.Subject.Valid() {
		return nil, fmt.Errorf("unknown subject: %q", binding.Subject)
	}
	if binding.Queue == "" {
		return nil, fmt.Errorf("queue group name required")
	}
	if binding.Handler == nil {
		return nil, fmt.Errorf("handler required")
	}

	consumer, err := b.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:        durableName(binding.Queue, binding.Subject),
		AckPolicy:      jetstream.AckExplicitPolicy,
		DeliverPolicy:  jetstream.DeliverAllPolicy,
		FilterSubjects: []string{BrokerSubject(binding.Subject)},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure consumer %s/%s: %w", binding.Queue, binding.Subject, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		b.handle(ctx, binding, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s/%s: %w", binding.Queue, binding.Subject, err)
	}

	b.log.Info("listener bound",
		zap.String("subject", binding.Subject.String()),
		zap.String("queue", binding.Queue),
	)

	var once sync.Once
	return subscriptionFunc(func() {
		once.Do(cc.Drain)
	}), nil
}

// handle runs one delivery. Acknowledge only after the handler succeeds; a
// handler error leaves the message unacknowledged so the broker redelivers
// it. A malformed message is terminated and copied to the dead-letter
// subject so it cannot poison the queue.
func (b *JetStream) handle(ctx context.Context, binding Binding, msg jetstream.Msg) {
	subject := binding.Subject.String()

	var env events.Envelope
	err := json.Unmarshal(msg.Data(), &env)
	if err == nil {
		err = env.Validate()
	}
	if err != nil {
		b.deadLetter(ctx, binding.Subject, msg, err)
		return
	}

	if err := binding.Handler(ctx, env); err != nil {
		if errors.Is(err, ErrMalformed) {
			b.deadLetter(ctx, binding.Subject, msg, err)
			return
		}
		b.metrics.RecordEventConsumed(subject, "error")
		// No ack: the broker redelivers per its policy.
		return
	}

	if err := msg.Ack(); err != nil {
		b.log.Error("ack failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	b.metrics.RecordEventConsumed(subject, "ok")
}

func (b *JetStream) deadLetter(ctx context.Context, subject events.Subject, msg jetstream.Msg, cause error) {
	b.metrics.RecordEventConsumed(subject.String(), "malformed")
	b.log.Error("malformed message dead-lettered",
		zap.String("subject", subject.String()),
		zap.Error(cause),
	)

	// Terminate only once the copy is on the dead-letter subject. A failed
	// copy leaves the message unacknowledged so redelivery retries the whole
	// dead-letter attempt; terminating first would lose it from both places.
	if err := b.publishRaw(ctx, DeadLetterSubject(subject), msg.Data()); err != nil {
		b.log.Error("dead-letter publish failed", zap.String("subject", subject.String()), zap.Error(err))
		return
	}
	if err := msg.Term(); err != nil {
		b.log.Error("terminate failed", zap.String("subject", subject.String()), zap.Error(err))
	}
}

// durableName builds the durable consumer name for a (queue, subject) tuple.
// JetStream consumer names cannot contain dots or colons.
func durableName(queue string, subject events.Subject) string {
	token := strings.ReplaceAll(subject.Token(), ".", "-")
	return queue + "-" + token
}

type subscriptionFunc func()

func (f subscriptionFunc) Stop() { f() }
