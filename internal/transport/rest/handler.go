// Package rest exposes the cart and the catalog over HTTP.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/facade"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/reconcile"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/store"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/web"
)

const defaultResolveTimeout = 3 * time.Second

// Carts hands out the store of a cart session.
type Carts interface {
	Get(ctx context.Context, session string) (*store.Store, error)
	Hold(ctx context.Context, session string) (*store.Store, func(), error)
}

type Handler struct {
	carts          Carts
	catalog        catalog.Client
	lookups        *reconcile.LookupCache
	notifier       facade.Notifier
	validate       *validator.Validate
	logger         *slog.Logger
	resolveTimeout time.Duration
}

// NewHandler creates the HTTP handlers. notifier may be nil.
func NewHandler(carts Carts, catalogClient catalog.Client, lookups *reconcile.LookupCache, notifier facade.Notifier,
	resolveTimeout time.Duration, logger *slog.Logger) *Handler {
	if resolveTimeout <= 0 {
		resolveTimeout = defaultResolveTimeout
	}
	return &Handler{
		carts:          carts,
		catalog:        catalogClient,
		lookups:        lookups,
		notifier:       notifier,
		validate:       validator.New(),
		logger:         logger.With("component", "rest"),
		resolveTimeout: resolveTimeout,
	}
}

// RegisterRoutes registers the HTTP routes of the storefront.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(web.CartSession)
		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/refresh", h.RefreshCart)
			r.Get("/stream", h.StreamCart)

			r.Post("/items", h.AddItem)
			r.Route("/items/{slug}", func(r chi.Router) {
				r.Put("/", h.UpdateItem)
				r.Delete("/", h.RemoveItem)
			})
		})
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{slug}", h.GetProduct)
	})
	r.Get("/api/v1/categories/{category}/products", h.ListCategory)

	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
