// Package facade is the entry point for cart mutations. Each action updates the store and then confirms the
// change to the shopper without waiting for delivery.
package facade

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/notify"
)

const instrumentationName = "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/facade"

// mutationCounter is created once and shared by every Actions.
var mutationCounter = sync.OnceValues(func() (metric.Int64Counter, error) {
	return otel.Meter(instrumentationName).Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations applied, by operation and persistence outcome"))
})

// Store is the cart the actions mutate.
type Store interface {
	Name() string
	AddItem(ctx context.Context, product catalog.Product, quantity int) (cart.Snapshot, error)
	RemoveItem(ctx context.Context, productID string) (cart.Snapshot, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (cart.Snapshot, error)
	Clear(ctx context.Context) (cart.Snapshot, error)
}

// Notifier accepts notifications for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Actions wraps a Store with shopper feedback.
type Actions struct {
	store     Store
	notifier  Notifier
	logger    *slog.Logger
	mutations metric.Int64Counter
}

// NewActions creates the actions for store. A nil logger discards output.
func NewActions(store Store, notifier Notifier, logger *slog.Logger) *Actions {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &Actions{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "cart_actions", "cart", store.Name()),
	}
	counter, err := mutationCounter()
	if err != nil {
		a.logger.Warn("Failed to create mutation counter", "error", err)
	}
	a.mutations = counter
	return a
}

// AddToCart adds quantity units of product and confirms it.
func (a *Actions) AddToCart(ctx context.Context, product catalog.Product, quantity int) (cart.Snapshot, error) {
	snap, err := a.store.AddItem(ctx, product, quantity)
	a.settle(ctx, "add_to_cart", snap, err, func() notify.Notification {
		return notify.ItemAdded(a.store.Name(), product.Slug, product.Name, quantity, snap)
	})
	return snap, err
}

// RemoveFromCart removes the line item for productID. Removing an absent item succeeds and is still confirmed.
func (a *Actions) RemoveFromCart(ctx context.Context, productID string) (cart.Snapshot, error) {
	snap, err := a.store.RemoveItem(ctx, productID)
	a.settle(ctx, "remove_from_cart", snap, err, func() notify.Notification {
		return notify.ItemRemoved(a.store.Name(), productID, snap)
	})
	return snap, err
}

// UpdateCartItemQuantity sets the quantity of productID, clamped to at least 1.
func (a *Actions) UpdateCartItemQuantity(ctx context.Context, productID string, quantity int) (cart.Snapshot, error) {
	snap, err := a.store.UpdateQuantity(ctx, productID, quantity)
	a.settle(ctx, "update_quantity", snap, err, func() notify.Notification {
		return notify.QuantityUpdated(a.store.Name(), productID, snap)
	})
	return snap, err
}

// ClearCart empties the cart.
func (a *Actions) ClearCart(ctx context.Context) (cart.Snapshot, error) {
	snap, err := a.store.Clear(ctx)
	a.settle(ctx, "clear_cart", snap, err, func() notify.Notification {
		return notify.Cleared(a.store.Name(), snap)
	})
	return snap, err
}

// settle confirms a mutation that took effect. A change that could not be persisted still took effect, so it is
// confirmed and followed by a warning. Rejected mutations are not confirmed.
func (a *Actions) settle(ctx context.Context, op string, snap cart.Snapshot, err error, confirm func() notify.Notification) {
	persisted := err == nil
	if err != nil && !errors.Is(err, carterrors.ErrPersistence) {
		a.logger.DebugContext(ctx, "Cart action rejected", "op", op, "error", err)
		return
	}

	if a.mutations != nil {
		a.mutations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.Bool("persisted", persisted),
		))
	}
	a.notify(ctx, confirm())
	if !persisted {
		a.notify(ctx, notify.PersistFailed(a.store.Name(), snap))
	}
}

func (a *Actions) notify(ctx context.Context, n notify.Notification) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, n); err != nil {
		a.logger.WarnContext(ctx, "Notification not delivered", "kind", n.Kind, "error", err)
	}
}
