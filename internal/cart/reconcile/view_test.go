package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

func peekFrom(entries map[string]*catalog.Product) PeekFunc {
	return func(id string) (Entry, bool) {
		p, ok := entries[id]
		if !ok {
			return Entry{}, false
		}
		return Entry{Product: p}, true
	}
}

func ptr(p catalog.Product) *catalog.Product {
	return &p
}

func snapshotOf(items ...cart.LineItem) cart.Snapshot {
	return cart.NewSnapshot(items, 7)
}

func Test_Build(t *testing.T) {
	// given
	snap := snapshotOf(
		cart.LineItem{ProductID: "c", Quantity: 1},
		cart.LineItem{ProductID: "a", Quantity: 2},
		cart.LineItem{ProductID: "b", Quantity: 3},
	)
	peek := peekFrom(map[string]*catalog.Product{
		"a": ptr(priced("a", 1000)),
		"b": nil,
	})

	// when
	view := Build(snap, peek)

	// then
	require.Len(t, view.Items, 3)
	assert.Equal(t, uint64(7), view.Version)
	assert.Equal(t, Item{Slug: "c", Quantity: 1, IsLoading: true}, view.Items[0])
	assert.Equal(t, "a", view.Items[1].Slug)
	assert.False(t, view.Items[1].IsLoading)
	assert.NotNil(t, view.Items[1].Product)
	assert.Equal(t, Item{Slug: "b", Quantity: 3}, view.Items[2])
	assert.True(t, view.Items[2].Unavailable())
	assert.False(t, view.Settled())
}

func Test_ComputeTotals(t *testing.T) {
	testCases := []struct {
		name     string
		items    []Item
		expected Totals
	}{
		{
			name: "compare-at price above selling price",
			items: []Item{
				{Slug: "a", Quantity: 2, Product: ptr(priced("a", 1000))},
				{Slug: "b", Quantity: 1, Product: ptr(onSale("b", 2000, 2500))},
			},
			expected: Totals{Subtotal: 4000, TotalMRP: 4500, TotalSavings: 500, ItemCount: 3, Resolved: 2},
		},
		{
			name: "compare-at price equal to selling price is ignored",
			items: []Item{
				{Slug: "a", Quantity: 2, Product: ptr(onSale("a", 1000, 1000))},
			},
			expected: Totals{Subtotal: 2000, TotalMRP: 2000, ItemCount: 2, Resolved: 1},
		},
		{
			name: "compare-at price below selling price is ignored",
			items: []Item{
				{Slug: "a", Quantity: 1, Product: ptr(onSale("a", 1000, 800))},
			},
			expected: Totals{Subtotal: 1000, TotalMRP: 1000, ItemCount: 1, Resolved: 1},
		},
		{
			name: "loading and unavailable items are excluded from prices",
			items: []Item{
				{Slug: "a", Quantity: 1, Product: ptr(priced("a", 1000))},
				{Slug: "b", Quantity: 4, IsLoading: true},
				{Slug: "c", Quantity: 2},
			},
			expected: Totals{
				Subtotal: 1000, TotalMRP: 1000, ItemCount: 7,
				Resolved: 1, Loading: 1, Unavailable: 1, ExcludesUnavailable: true,
			},
		},
		{
			name:     "empty cart",
			items:    nil,
			expected: Totals{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			totals := ComputeTotals(tc.items)

			// then
			assert.Equal(t, tc.expected, totals)
			assert.GreaterOrEqual(t, totals.TotalSavings, money.Zero)
		})
	}
}

func Test_ComputeTotals_SavingsNeverNegative(t *testing.T) {
	prices := []money.Money{0, 1, 99, 1000, 2500}
	for _, price := range prices {
		for _, compareAt := range prices {
			items := []Item{{Slug: "x", Quantity: 3, Product: ptr(onSale("x", price, compareAt))}}

			totals := ComputeTotals(items)

			assert.GreaterOrEqual(t, totals.TotalSavings, money.Zero)
			if compareAt <= price {
				assert.Zero(t, totals.TotalSavings)
			} else {
				assert.Equal(t, (compareAt-price).Times(3), totals.TotalSavings)
			}
		}
	}
}
