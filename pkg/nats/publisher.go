package nats

import (
	"context"
	"fmt"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

type NatsPublisher struct {
	js     jetstream.JetStream
	prefix string
}

var _ messaging.Publisher = (*NatsPublisher)(nil)

// NewNatsPublisher publishes events under prefix, e.g. prefix "cart.events" and subject "cleared" produce
// "cart.events.cleared".
func NewNatsPublisher(js jetstream.JetStream, prefix string) *NatsPublisher {
	return &NatsPublisher{js: js, prefix: prefix}
}

func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	subject := event.Subject()
	if p.prefix != "" {
		subject = p.prefix + "." + subject
	}
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.MsgID())); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}
