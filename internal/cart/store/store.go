// Package store holds the authoritative cart state for one cart and persists every change synchronously.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/storage"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
)

const defaultPersistTimeout = 3 * time.Second

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithPersistTimeout bounds each synchronous save.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// Store is the single writer of one cart. Mutations are applied in call order; each one rebuilds the snapshot,
// saves it under the store's name and then broadcasts it to subscribers.
type Store struct {
	name           string
	storage        storage.Storage
	logger         *slog.Logger
	persistTimeout time.Duration

	writeMu sync.Mutex
	state   atomic.Pointer[cart.Snapshot]

	subMu   sync.Mutex
	subs    map[uint64]chan cart.Snapshot
	nextSub uint64
	closed  bool
}

// Open hydrates the cart saved under name. A missing or corrupt record yields an empty cart; any other storage
// error is returned.
func Open(ctx context.Context, name string, st storage.Storage, opts ...Option) (*Store, error) {
	s := &Store{
		name:           name,
		storage:        st,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		persistTimeout: defaultPersistTimeout,
		subs:           make(map[uint64]chan cart.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cart_store", "cart", name)

	loaded, err := st.Load(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, carterrors.ErrRecordNotFound):
		loaded = cart.NewSnapshot(nil, 0)
	case errors.Is(err, carterrors.ErrCorruptRecord):
		s.logger.WarnContext(ctx, "Discarding unreadable cart record", "error", err)
		loaded = cart.NewSnapshot(nil, 0)
	default:
		return nil, fmt.Errorf("failed to load cart %s: %w", name, err)
	}
	initial := cart.NewSnapshot(loaded.Items, 1)
	s.state.Store(&initial)
	return s, nil
}

// Name returns the storage name the cart is saved under.
func (s *Store) Name() string {
	return s.name
}

// Snapshot returns the current state. The returned value shares nothing with the store.
func (s *Store) Snapshot() cart.Snapshot {
	cur := s.state.Load()
	return cart.NewSnapshot(cur.Items, cur.Version)
}

// AddItem adds quantity units of product, merging into an existing line item.
// Returns ErrInvalidQuantity for quantity < 1 or when the line would exceed cart.MaxQuantity, and ErrInvalidProduct
// for a product without slug.
func (s *Store) AddItem(ctx context.Context, product catalog.Product, quantity int) (cart.Snapshot, error) {
	if product.Slug == "" {
		return s.Snapshot(), carterrors.ErrInvalidProduct
	}
	if quantity < 1 || quantity > cart.MaxQuantity {
		return s.Snapshot(), fmt.Errorf("%w: %d", carterrors.ErrInvalidQuantity, quantity)
	}
	return s.mutate(ctx, "add_item", func(items []cart.LineItem) ([]cart.LineItem, bool, error) {
		if i := indexOf(items, product.Slug); i >= 0 {
			if items[i].Quantity > cart.MaxQuantity-quantity {
				return items, false, fmt.Errorf("%w: %d more of %s would exceed %d",
					carterrors.ErrInvalidQuantity, quantity, product.Slug, cart.MaxQuantity)
			}
			items[i].Quantity += quantity
			items[i].UnitPrice = product.Price
			return items, true, nil
		}
		return append(items, cart.LineItem{
			ProductID: product.Slug,
			Quantity:  quantity,
			UnitPrice: product.Price,
		}), true, nil
	})
}

// RemoveItem deletes the line item for productID. Removing an absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) (cart.Snapshot, error) {
	return s.mutate(ctx, "remove_item", func(items []cart.LineItem) ([]cart.LineItem, bool, error) {
		i := indexOf(items, productID)
		if i < 0 {
			return items, false, nil
		}
		return slices.Delete(items, i, i+1), true, nil
	})
}

// UpdateQuantity sets the quantity of productID, clamped to at least 1. Use RemoveItem to delete a line.
// Returns ErrItemNotFound, leaving the cart untouched, when productID is not in the cart, and ErrInvalidQuantity
// above cart.MaxQuantity.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) (cart.Snapshot, error) {
	if quantity > cart.MaxQuantity {
		return s.Snapshot(), fmt.Errorf("%w: %d", carterrors.ErrInvalidQuantity, quantity)
	}
	return s.mutate(ctx, "update_quantity", func(items []cart.LineItem) ([]cart.LineItem, bool, error) {
		i := indexOf(items, productID)
		if i < 0 {
			s.logger.WarnContext(ctx, "Quantity update for item not in cart ignored", "product_id", productID)
			return items, false, fmt.Errorf("%w: %s", carterrors.ErrItemNotFound, productID)
		}
		items[i].Quantity = max(quantity, 1)
		return items, true, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) (cart.Snapshot, error) {
	return s.mutate(ctx, "clear", func([]cart.LineItem) ([]cart.LineItem, bool, error) {
		return nil, true, nil
	})
}

// mutate applies fn to a private copy of the items. Unchanged results are neither saved nor broadcast.
func (s *Store) mutate(ctx context.Context, op string, fn func([]cart.LineItem) ([]cart.LineItem, bool, error)) (cart.Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.state.Load()
	items, changed, err := fn(slices.Clone(cur.Items))
	if err != nil || !changed {
		return cart.NewSnapshot(cur.Items, cur.Version), err
	}

	next := cart.NewSnapshot(items, cur.Version+1)
	s.state.Store(&next)

	persistErr := s.persist(ctx, next)
	s.broadcast(next)

	s.logger.DebugContext(ctx, "Cart updated",
		"op", op,
		"version", next.Version,
		"total_items", next.TotalItems,
		"persisted", persistErr == nil,
	)
	if persistErr != nil {
		s.logger.WarnContext(ctx, "Cart change kept in memory only", "op", op, "error", persistErr)
		return cart.NewSnapshot(next.Items, next.Version), fmt.Errorf("%w: %w", carterrors.ErrPersistence, persistErr)
	}
	return cart.NewSnapshot(next.Items, next.Version), nil
}

// persist saves snapshot even if the caller has already gone away.
func (s *Store) persist(ctx context.Context, snapshot cart.Snapshot) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	return s.storage.Save(pctx, s.name, snapshot)
}

func indexOf(items []cart.LineItem, productID string) int {
	return slices.IndexFunc(items, func(it cart.LineItem) bool { return it.ProductID == productID })
}
