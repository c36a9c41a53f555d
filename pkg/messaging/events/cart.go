package events

import (
	"encoding/json"
	"time"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/messaging"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
	"github.com/google/uuid"
)

// CartEvent reports a completed cart mutation.
type CartEvent struct {
	EventID    uuid.UUID   `json:"event_id"`
	Kind       string      `json:"kind"`
	Cart       string      `json:"cart"`
	ProductID  string      `json:"product_id,omitempty"`
	Quantity   int         `json:"quantity,omitempty"`
	TotalItems int         `json:"total_items"`
	TotalPrice money.Money `json:"total_price"`
	OccurredAt time.Time   `json:"occurred_at"`
}

var _ messaging.Event = CartEvent{}

func (e CartEvent) Subject() string {
	return e.Kind
}

func (e CartEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e CartEvent) MsgID() string {
	return e.EventID.String()
}
