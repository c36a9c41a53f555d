// Package catalog provides read access to product records published by the headless content API.
package catalog

import (
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

// Image is a product media reference.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Product is a catalog record. Slug is the key the cart and every lookup use.
type Product struct {
	ID             string       `json:"id"`
	Slug           string       `json:"slug"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Price          money.Money  `json:"price"`
	CompareAtPrice *money.Money `json:"compareAtPrice,omitempty"`
	Images         []Image      `json:"images,omitempty"`
	Categories     []string     `json:"categories,omitempty"`
	InStock        bool         `json:"inStock"`
}

// OnSale reports whether the product carries a compare-at price above its selling price.
func (p Product) OnSale() bool {
	return p.CompareAtPrice != nil && *p.CompareAtPrice > p.Price
}

// ListPrice is the undiscounted unit price: the compare-at price when the product is on sale, the selling price
// otherwise.
func (p Product) ListPrice() money.Money {
	if p.OnSale() {
		return *p.CompareAtPrice
	}
	return p.Price
}

// InCategory reports whether the product is tagged with category.
func (p Product) InCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}
