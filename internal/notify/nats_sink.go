package notify

import (
	"context"
	"fmt"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/messaging"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/messaging/events"
)

var subjects = map[Kind]string{
	KindItemAdded:       messaging.CartItemAddedSubject,
	KindItemRemoved:     messaging.CartItemRemovedSubject,
	KindQuantityUpdated: messaging.CartQuantityUpdatedSubject,
	KindCleared:         messaging.CartClearedSubject,
	KindPersistFailed:   messaging.CartPersistFailedSubject,
}

// NatsSink publishes notifications as cart events.
type NatsSink struct {
	publisher messaging.Publisher
}

var _ Sink = (*NatsSink)(nil)

func NewNatsSink(publisher messaging.Publisher) *NatsSink {
	return &NatsSink{publisher: publisher}
}

func (s *NatsSink) Name() string {
	return "nats"
}

func (s *NatsSink) Send(ctx context.Context, n Notification) error {
	event, err := toEvent(n)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, event)
}

func toEvent(n Notification) (events.CartEvent, error) {
	subject, ok := subjects[n.Kind]
	if !ok {
		return events.CartEvent{}, fmt.Errorf("no subject for notification kind %q", n.Kind)
	}
	return events.CartEvent{
		EventID:    n.ID,
		Kind:       subject,
		Cart:       n.Cart,
		ProductID:  n.ProductID,
		Quantity:   n.Quantity,
		TotalItems: n.TotalItems,
		TotalPrice: n.TotalPrice,
		OccurredAt: n.OccurredAt,
	}, nil
}
