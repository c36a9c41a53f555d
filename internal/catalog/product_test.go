package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

func Test_Product_Pricing(t *testing.T) {
	at := func(m money.Money) *money.Money { return &m }
	testCases := []struct {
		name      string
		product   Product
		onSale    bool
		listPrice money.Money
	}{
		{name: "no compare-at price", product: Product{Price: 1000}, listPrice: 1000},
		{name: "compare-at above price", product: Product{Price: 2000, CompareAtPrice: at(2500)}, onSale: true, listPrice: 2500},
		{name: "compare-at equal to price", product: Product{Price: 2000, CompareAtPrice: at(2000)}, listPrice: 2000},
		{name: "compare-at below price", product: Product{Price: 2000, CompareAtPrice: at(1500)}, listPrice: 2000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.onSale, tc.product.OnSale())
			assert.Equal(t, tc.listPrice, tc.product.ListPrice())
		})
	}
}

func Test_Product_InCategory(t *testing.T) {
	p := Product{Categories: []string{"festive", "home"}}

	assert.True(t, p.InCategory("home"))
	assert.False(t, p.InCategory("Home"))
}
