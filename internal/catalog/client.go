package catalog

import "context"

// Client defines read operations against the product catalog.
type Client interface {
	// GetProductBySlug returns the product published under slug.
	// Returns ErrProductNotFound if no such product exists.
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)

	// GetProducts returns every published product.
	// Returns an empty slice if the catalog is empty.
	GetProducts(ctx context.Context) ([]Product, error)

	// GetProductsByCategory returns the products tagged with category.
	// Returns an empty slice for unknown categories.
	GetProductsByCategory(ctx context.Context, category string) ([]Product, error)
}
