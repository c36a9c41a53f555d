// Package notify delivers user-facing cart confirmations to the configured sinks without blocking the caller.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

// Kind identifies the cart action a notification reports.
type Kind string

const (
	KindItemAdded       Kind = "item_added"
	KindItemRemoved     Kind = "item_removed"
	KindQuantityUpdated Kind = "quantity_updated"
	KindCleared         Kind = "cleared"
	KindPersistFailed   Kind = "persist_failed"
)

// Level is the severity a surface should render the notification with.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Notification is a short message about a cart change.
type Notification struct {
	ID          uuid.UUID   `json:"id"`
	Kind        Kind        `json:"kind"`
	Level       Level       `json:"level"`
	Message     string      `json:"message"`
	Cart        string      `json:"cart"`
	ProductID   string      `json:"productId,omitempty"`
	ProductName string      `json:"productName,omitempty"`
	Quantity    int         `json:"quantity,omitempty"`
	TotalItems  int         `json:"totalItems"`
	TotalPrice  money.Money `json:"totalPrice"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

func newNotification(kind Kind, level Level, cartName string, snapshot cart.Snapshot) Notification {
	return Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Level:      level,
		Cart:       cartName,
		TotalItems: snapshot.TotalItems,
		TotalPrice: snapshot.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
}

// ItemAdded confirms that quantity units of a product were added.
func ItemAdded(cartName, productID, productName string, quantity int, snapshot cart.Snapshot) Notification {
	n := newNotification(KindItemAdded, LevelSuccess, cartName, snapshot)
	n.ProductID, n.ProductName, n.Quantity = productID, productName, quantity
	n.Message = fmt.Sprintf("%s added to cart", displayName(productID, productName))
	return n
}

// ItemRemoved confirms that a line item was removed.
func ItemRemoved(cartName, productID string, snapshot cart.Snapshot) Notification {
	n := newNotification(KindItemRemoved, LevelInfo, cartName, snapshot)
	n.ProductID = productID
	n.Message = "Item removed from cart"
	return n
}

// QuantityUpdated confirms the new quantity of a line item.
func QuantityUpdated(cartName, productID string, snapshot cart.Snapshot) Notification {
	n := newNotification(KindQuantityUpdated, LevelInfo, cartName, snapshot)
	n.ProductID = productID
	n.Quantity = snapshot.Quantity(productID)
	n.Message = fmt.Sprintf("Quantity updated to %d", n.Quantity)
	return n
}

// Cleared confirms that the cart was emptied.
func Cleared(cartName string, snapshot cart.Snapshot) Notification {
	n := newNotification(KindCleared, LevelInfo, cartName, snapshot)
	n.Message = "Cart cleared"
	return n
}

// PersistFailed warns that the last change is only held in memory.
func PersistFailed(cartName string, snapshot cart.Snapshot) Notification {
	n := newNotification(KindPersistFailed, LevelWarning, cartName, snapshot)
	n.Message = "Your cart could not be saved and may not survive a refresh"
	return n
}

func displayName(productID, productName string) string {
	if productName != "" {
		return productName
	}
	return productID
}
