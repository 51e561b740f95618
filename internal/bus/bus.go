// Package bus carries envelopes between services over a shared topic
// backbone. Services publish under a subject; listeners bind a durable,
// named queue group to one subject and acknowledge only after their handler
// succeeds, so a crash before ack causes redelivery. Handlers must therefore
// be idempotent.
package bus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/events"
)

// ErrMalformed marks a message that can never be processed (payload fails to
// deserialize). Implementations dead-letter such messages instead of
// redelivering them forever.
var ErrMalformed = errors.New("bus: malformed message")

// Binding describes one durable subscription: a subject, the queue group
// shared by all instances of the consuming service, and the handler invoked
// per delivery. The broker delivers each message to exactly one instance in
// the group, except after a crash before ack, which causes redelivery.
type Binding struct {
	Subject events.Subject
	Queue   string
	Handler func(ctx context.Context, env events.Envelope) error
}

// Subscription is a live listener binding. Stop drains and detaches it; the
// durable queue itself survives and keeps collecting messages.
type Subscription interface {
	Stop()
}

// Bus is the broker boundary. Publish returns once the broker has accepted
// the message for routing; delivery to zero, one, or many bound queues is
// expected and correct. The bus holds no outbox: a service can commit state
// and crash before publishing, and that consistency window is a documented
// property of the platform, not something this layer papers over.
type Bus interface {
	Publish(ctx context.Context, env events.Envelope) error
	Subscribe(ctx context.Context, b Binding) (Subscription, error)
}

// Publisher publishes payloads of one declared subject.
type Publisher[T events.Payload] struct {
	bus Bus
	log *zap.Logger
}

// NewPublisher wraps bus in a typed publisher for T's subject.
func NewPublisher[T events.Payload](b Bus, log *zap.Logger) *Publisher[T] {
	return &Publisher[T]{bus: b, log: log}
}

// Publish wraps the payload in an envelope and hands it to the broker.
func (p *Publisher[T]) Publish(ctx context.Context, payload T) error {
	env, err := events.NewEnvelope(payload)
	if err != nil {
		return err
	}
	if err := p.bus.Publish(ctx, env); err != nil {
		return fmt.Errorf("publish %s: %w", env.Subject, err)
	}
	p.log.Debug("event published",
		zap.String("subject", env.Subject.String()),
		zap.String("event_id", env.ID),
	)
	return nil
}

// Listener consumes payloads of one declared subject on a queue group.
type Listener[T events.Payload] struct {
	bus       Bus
	queue     string
	onMessage func(ctx context.Context, data T, env events.Envelope) error
	log       *zap.Logger
}

// NewListener binds onMessage to T's subject on the given queue group.
func NewListener[T events.Payload](b Bus, queue string, log *zap.Logger, onMessage func(ctx context.Context, data T, env events.Envelope) error) *Listener[T] {
	return &Listener[T]{bus: b, queue: queue, onMessage: onMessage, log: log}
}

// Listen starts the long-running subscription. It returns once the binding is
// established; deliveries then flow to onMessage until the subscription is
// stopped or ctx is canceled. A decode failure is reported as ErrMalformed so
// the bus dead-letters the message; any other handler error leaves the
// message unacknowledged for redelivery.
func (l *Listener[T]) Listen(ctx context.Context) (Subscription, error) {
	var zero T
	subject := zero.EventSubject()

	return l.bus.Subscribe(ctx, Binding{
		Subject: subject,
		Queue:   l.queue,
		Handler: func(ctx context.Context, env events.Envelope) error {
			data, err := events.Decode[T](env)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			if err := l.onMessage(ctx, data, env); err != nil {
				l.log.Warn("event handler failed",
					zap.String("subject", subject.String()),
					zap.String("event_id", env.ID),
					zap.String("queue", l.queue),
					zap.Error(err),
				)
				return err
			}
			return nil
		},
	})
}
