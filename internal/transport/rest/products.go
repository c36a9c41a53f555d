package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	catalogerrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/web"
)

// ListProducts returns every published product.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.GetProducts(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Failed to fetch products")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// GetProduct returns a product by its slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug, ok := web.ParseSlug(w, r, h.logger, "slug")
	if !ok {
		return
	}
	product, err := h.catalog.GetProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrProductNotFound) {
			web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Product %s not found", slug))
			return
		}
		h.logger.ErrorContext(r.Context(), "Error retrieving product", "slug", slug, "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, fmt.Sprintf("Failed to retrieve product %s", slug))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, product)
}

// ListCategory returns the products tagged with a category.
func (h *Handler) ListCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if category == "" {
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid category")
		return
	}
	list, err := h.catalog.GetProductsByCategory(r.Context(), category)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving category", "category", category, "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Failed to fetch products")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}
