package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	catalogerrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog/errors"
)

// InMemory implements Client using an in-memory map keyed by slug.
type InMemory struct {
	mu       sync.RWMutex
	products map[string]Product
	order    []string
}

var _ Client = (*InMemory)(nil)

// NewInMemory creates a catalog holding the given products in listing order.
func NewInMemory(products ...Product) *InMemory {
	c := &InMemory{
		products: make(map[string]Product, len(products)),
	}
	for _, p := range products {
		c.Put(p)
	}
	return c
}

// LoadInMemory reads a JSON array of products from path.
func LoadInMemory(path string) (*InMemory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed %s: %w", path, err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to decode catalog seed %s: %w", path, err)
	}
	return NewInMemory(products...), nil
}

// Put adds or replaces the product stored under p.Slug.
func (s *InMemory) Put(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.Slug]; !exists {
		s.order = append(s.order, p.Slug)
	}
	s.products[p.Slug] = p
}

// Delete unpublishes the product stored under slug.
func (s *InMemory) Delete(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[slug]; !exists {
		return
	}
	delete(s.products, slug)
	for i, v := range s.order {
		if v == slug {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// GetProductBySlug retrieves a product by its slug.
func (s *InMemory) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[slug]
	if !ok {
		return nil, catalogerrors.ErrProductNotFound
	}
	return &p, nil
}

// GetProducts retrieves all products in listing order.
func (s *InMemory) GetProducts(ctx context.Context) ([]Product, error) {
	return s.filter(ctx, func(Product) bool { return true })
}

// GetProductsByCategory retrieves the products tagged with category.
func (s *InMemory) GetProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	return s.filter(ctx, func(p Product) bool { return p.InCategory(category) })
}

func (s *InMemory) filter(ctx context.Context, keep func(Product) bool) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0, len(s.order))
	for _, slug := range s.order {
		if p := s.products[slug]; keep(p) {
			list = append(list, p)
		}
	}
	return list, nil
}
