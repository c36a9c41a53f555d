// Package storage persists cart snapshots under a storage name. Each backend keeps one record per name holding the
// line items and the derived totals.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
)

// Storage loads and saves cart records.
type Storage interface {
	// Load returns the record stored under name.
	// Returns ErrRecordNotFound if nothing was saved under name.
	Load(ctx context.Context, name string) (cart.Snapshot, error)

	// Save replaces the record stored under name.
	Save(ctx context.Context, name string, snapshot cart.Snapshot) error

	// Delete removes the record stored under name. Deleting a missing record is not an error.
	Delete(ctx context.Context, name string) error
}

func encode(snapshot cart.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// decode rebuilds a snapshot from a stored record. The persisted totals are ignored and recomputed from the items.
func decode(data []byte) (cart.Snapshot, error) {
	var stored cart.Snapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return cart.Snapshot{}, fmt.Errorf("%w: %w", carterrors.ErrCorruptRecord, err)
	}
	seen := make(map[string]struct{}, len(stored.Items))
	for _, it := range stored.Items {
		if it.ProductID == "" || it.Quantity < 1 || it.Quantity > cart.MaxQuantity {
			return cart.Snapshot{}, fmt.Errorf("%w: invalid line item %+v", carterrors.ErrCorruptRecord, it)
		}
		if _, dup := seen[it.ProductID]; dup {
			return cart.Snapshot{}, fmt.Errorf("%w: duplicate line item %s", carterrors.ErrCorruptRecord, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}
	return cart.NewSnapshot(stored.Items, 0), nil
}
