// Package messaging defines the event publishing contract shared by broker implementations.
package messaging

import (
	"context"
)

type Event interface {
	// Subject is the event subject relative to the publisher's prefix.
	Subject() string
	Payload() ([]byte, error)
	// MsgID identifies the event for broker-side deduplication.
	MsgID() string
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
