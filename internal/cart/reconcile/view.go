package reconcile

import (
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

// Item is one line item joined with its catalog product. Product is nil while IsLoading is true, and stays nil
// after settling when the product could not be resolved.
type Item struct {
	Slug      string           `json:"slug"`
	Quantity  int              `json:"quantity"`
	Product   *catalog.Product `json:"product"`
	IsLoading bool             `json:"isLoading"`
}

// Unavailable reports whether the lookup settled without a product.
func (i Item) Unavailable() bool {
	return !i.IsLoading && i.Product == nil
}

// Totals aggregates the resolved items of a view. Loading and unavailable items only count towards ItemCount.
type Totals struct {
	Subtotal            money.Money `json:"subtotal"`
	TotalMRP            money.Money `json:"totalMRP"`
	TotalSavings        money.Money `json:"totalSavings"`
	ItemCount           int         `json:"itemCount"`
	Resolved            int         `json:"resolved"`
	Loading             int         `json:"loading"`
	Unavailable         int         `json:"unavailable"`
	ExcludesUnavailable bool        `json:"excludesUnavailable"`
}

// View is the display model of a cart at one snapshot version.
type View struct {
	Items   []Item `json:"items"`
	Totals  Totals `json:"totals"`
	Version uint64 `json:"version"`
}

// Settled reports whether no item is still loading.
func (v View) Settled() bool {
	return v.Totals.Loading == 0
}

// PeekFunc returns the settled lookup for a product id, if any.
type PeekFunc func(id string) (Entry, bool)

// Build joins snapshot with whatever lookups have settled so far. Items keep the snapshot's order.
func Build(snapshot cart.Snapshot, peek PeekFunc) View {
	items := make([]Item, len(snapshot.Items))
	for i, li := range snapshot.Items {
		items[i] = Item{Slug: li.ProductID, Quantity: li.Quantity, IsLoading: true}
		if e, ok := peek(li.ProductID); ok {
			items[i].Product = e.Product
			items[i].IsLoading = false
		}
	}
	return View{
		Items:   items,
		Totals:  ComputeTotals(items),
		Version: snapshot.Version,
	}
}

// ComputeTotals sums prices over resolved items only. A compare-at price counts towards the MRP only when it is
// above the selling price, so savings are never negative.
func ComputeTotals(items []Item) Totals {
	var t Totals
	for _, it := range items {
		t.ItemCount += it.Quantity
		switch {
		case it.IsLoading:
			t.Loading++
		case it.Product == nil:
			t.Unavailable++
		default:
			t.Resolved++
			t.Subtotal += it.Product.Price.Times(it.Quantity)
			t.TotalMRP += it.Product.ListPrice().Times(it.Quantity)
		}
	}
	t.TotalSavings = (t.TotalMRP - t.Subtotal).Max(money.Zero)
	t.ExcludesUnavailable = t.Unavailable > 0
	return t
}
