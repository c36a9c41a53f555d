package reconcile

import (
	"context"
	"sync"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	catalogerrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

// fakeCatalog serves products from a map. A gated slug blocks until release is called for it.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	failures map[string]error
	gates    map[string]chan struct{}
	calls    map[string]int
}

var _ catalog.Client = (*fakeCatalog)(nil)

func newFakeCatalog(products ...catalog.Product) *fakeCatalog {
	f := &fakeCatalog{
		products: make(map[string]catalog.Product),
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
	for _, p := range products {
		f.products[p.Slug] = p
	}
	return f
}

func (f *fakeCatalog) gate(slugs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range slugs {
		f.gates[s] = make(chan struct{})
	}
}

func (f *fakeCatalog) release(slug string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.gates[slug]; ok {
		close(g)
		delete(f.gates, slug)
	}
}

func (f *fakeCatalog) fail(slug string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[slug] = err
}

func (f *fakeCatalog) remove(slug string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, slug)
}

func (f *fakeCatalog) put(p catalog.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.Slug] = p
	delete(f.failures, p.Slug)
}

func (f *fakeCatalog) callCount(slug string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[slug]
}

func (f *fakeCatalog) GetProductBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	f.mu.Lock()
	f.calls[slug]++
	g := f.gates[slug]
	f.mu.Unlock()

	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[slug]; err != nil {
		return nil, err
	}
	p, ok := f.products[slug]
	if !ok {
		return nil, catalogerrors.ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeCatalog) GetProducts(context.Context) ([]catalog.Product, error) {
	return nil, nil
}

func (f *fakeCatalog) GetProductsByCategory(context.Context, string) ([]catalog.Product, error) {
	return nil, nil
}

func priced(slug string, price money.Money) catalog.Product {
	return catalog.Product{ID: "id-" + slug, Slug: slug, Name: slug, Price: price, InStock: true}
}

func onSale(slug string, price, compareAt money.Money) catalog.Product {
	p := priced(slug, price)
	p.CompareAtPrice = &compareAt
	return p
}
