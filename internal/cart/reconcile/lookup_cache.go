// Package reconcile joins cart line items with catalog products and derives the totals shown to shoppers.
package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	catalogerrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog/errors"
)

const (
	instrumentationName  = "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/reconcile"
	defaultLookupTimeout = 5 * time.Second
	defaultFailureTTL    = 30 * time.Second
)

// Entry is a settled catalog lookup. Product is nil when the lookup failed; Err then holds the reason.
type Entry struct {
	Product   *catalog.Product
	Err       error
	SettledAt time.Time
}

// Available reports whether the lookup produced a product.
func (e Entry) Available() bool {
	return e.Product != nil
}

// Transient reports whether the lookup failed for a reason other than the product missing from the catalog.
func (e Entry) Transient() bool {
	return e.Product == nil && e.Err != nil && !errors.Is(e.Err, catalogerrors.ErrProductNotFound)
}

func (e Entry) clone() Entry {
	e.Product = cloneProduct(e.Product)
	return e
}

func cloneProduct(p *catalog.Product) *catalog.Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.CompareAtPrice != nil {
		compareAt := *p.CompareAtPrice
		c.CompareAtPrice = &compareAt
	}
	c.Images = slices.Clone(p.Images)
	c.Categories = slices.Clone(p.Categories)
	return &c
}

// CacheOption configures a LookupCache.
type CacheOption func(*LookupCache)

// WithLookupTimeout bounds each catalog call.
func WithLookupTimeout(d time.Duration) CacheOption {
	return func(c *LookupCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTTL makes successful entries expire after d. Not-found entries never expire on their own.
func WithTTL(d time.Duration) CacheOption {
	return func(c *LookupCache) { c.ttl = d }
}

// WithFailureTTL makes transient failures (timeouts, unavailable catalog) expire after d. Zero keeps them until
// forgotten.
func WithFailureTTL(d time.Duration) CacheOption {
	return func(c *LookupCache) { c.failureTTL = d }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *LookupCache) { c.logger = logger }
}

// LookupCache resolves product ids against the catalog, at most one call in flight per id. Settled results,
// failures included, are served from memory until they expire or are forgotten. A settled failure is never retried
// by a lookup on its own; callers starting a new visit of a cart forget the failures of its items first.
type LookupCache struct {
	client     catalog.Client
	timeout    time.Duration
	ttl        time.Duration
	failureTTL time.Duration
	logger     *slog.Logger
	tracer  trace.Tracer
	lookups metric.Int64Counter
	now     func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewLookupCache creates a cache in front of client.
func NewLookupCache(client catalog.Client, opts ...CacheOption) *LookupCache {
	c := &LookupCache{
		client:     client,
		timeout:    defaultLookupTimeout,
		failureTTL: defaultFailureTTL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.Tracer(instrumentationName),
		now:        time.Now,
		entries:    make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "lookup_cache")

	counter, err := otel.Meter(instrumentationName).Int64Counter("cart.catalog.lookups",
		metric.WithDescription("Catalog lookups issued by the cart, by outcome"))
	if err != nil {
		c.logger.Warn("Failed to create lookup counter", "error", err)
	}
	c.lookups = counter
	return c
}

// Peek returns the settled entry for id without issuing a lookup.
func (c *LookupCache) Peek(id string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || c.expired(e) {
		return Entry{}, false
	}
	return e.clone(), true
}

// Lookup returns the entry for id, fetching it if nothing is settled yet. Concurrent callers for the same id share
// one catalog call. The call itself is detached from ctx; ctx only bounds how long this caller waits.
func (c *LookupCache) Lookup(ctx context.Context, id string) (Entry, error) {
	if e, ok := c.Peek(id); ok {
		return e, nil
	}

	ch := c.group.DoChan(id, func() (any, error) {
		if e, ok := c.Peek(id); ok {
			return e, nil
		}
		return c.fetch(context.WithoutCancel(ctx), id), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Entry).clone(), nil
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// Forget drops the entry for id so the next Lookup asks the catalog again.
func (c *LookupCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// ForgetFailures drops the failed entries among ids, or every failed entry when ids is empty.
// Returns the ids that were dropped.
func (c *LookupCache) ForgetFailures(ids ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped []string
	drop := func(id string) {
		if e, ok := c.entries[id]; ok && !e.Available() {
			delete(c.entries, id)
			dropped = append(dropped, id)
		}
	}
	if len(ids) == 0 {
		for id := range c.entries {
			drop(id)
		}
		return dropped
	}
	for _, id := range ids {
		drop(id)
	}
	return dropped
}

// Len returns the number of settled entries, expired ones included.
func (c *LookupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *LookupCache) fetch(ctx context.Context, id string) Entry {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "catalog.lookup", trace.WithAttributes(attribute.String("product.slug", id)))
	defer span.End()

	product, err := c.client.GetProductBySlug(ctx, id)
	e := Entry{Product: product, Err: err, SettledAt: c.now()}

	outcome := "resolved"
	switch {
	case err == nil && product == nil:
		e.Err = catalogerrors.ErrProductNotFound
		outcome = "not_found"
	case errors.Is(err, catalogerrors.ErrProductNotFound):
		e.Product = nil
		outcome = "not_found"
		c.logger.InfoContext(ctx, "Product no longer in catalog", "product_id", id)
	case err != nil:
		e.Product = nil
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "Catalog lookup failed", "product_id", id, "error", err)
	}
	if c.lookups != nil {
		c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
	return e
}

func (c *LookupCache) expired(e Entry) bool {
	switch {
	case e.Available():
		return c.ttl > 0 && c.now().Sub(e.SettledAt) > c.ttl
	case e.Transient():
		return c.failureTTL > 0 && c.now().Sub(e.SettledAt) > c.failureTTL
	default:
		return false
	}
}
