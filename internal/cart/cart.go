// Package cart defines the persisted cart state shared by the store, its storage backends and the reconciler.
package cart

import (
	"slices"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

// MaxQuantity is the largest quantity a line item may hold. It keeps quantities and price totals far from integer
// overflow.
const MaxQuantity = 999_999

// LineItem is one product in the cart. ProductID is the catalog slug.
// UnitPrice is the price seen when the product was last added and only feeds Snapshot.TotalPrice.
type LineItem struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unitPrice"`
}

// Snapshot is an immutable view of a cart. TotalItems and TotalPrice are caches derived from Items.
// Version increases with every mutation and is not persisted.
type Snapshot struct {
	Items      []LineItem  `json:"items"`
	TotalItems int         `json:"totalItems"`
	TotalPrice money.Money `json:"totalPrice"`
	Version    uint64      `json:"-"`
}

// NewSnapshot builds a snapshot from items, deriving the cache fields.
func NewSnapshot(items []LineItem, version uint64) Snapshot {
	s := Snapshot{
		Items:   slices.Clone(items),
		Version: version,
	}
	if s.Items == nil {
		s.Items = []LineItem{}
	}
	for _, it := range s.Items {
		s.TotalItems += it.Quantity
		s.TotalPrice += it.UnitPrice.Times(it.Quantity)
	}
	return s
}

// Index returns the position of productID in Items, or -1.
func (s Snapshot) Index(productID string) int {
	return slices.IndexFunc(s.Items, func(it LineItem) bool { return it.ProductID == productID })
}

// Contains reports whether productID has a line item.
func (s Snapshot) Contains(productID string) bool {
	return s.Index(productID) >= 0
}

// Quantity returns the quantity held for productID, 0 if absent.
func (s Snapshot) Quantity(productID string) int {
	if i := s.Index(productID); i >= 0 {
		return s.Items[i].Quantity
	}
	return 0
}

// ProductIDs lists the product ids in insertion order.
func (s Snapshot) ProductIDs() []string {
	ids := make([]string, len(s.Items))
	for i, it := range s.Items {
		ids[i] = it.ProductID
	}
	return ids
}

// IsEmpty reports whether the cart holds no items.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}
