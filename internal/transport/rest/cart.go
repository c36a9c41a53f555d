package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/facade"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/reconcile"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/store"
	catalogerrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/web"
)

// GetCart returns the reconciled cart. With wait=true the response waits until every item has settled or the
// resolve timeout passes; otherwise items still being looked up are reported as loading. Every load is a new visit
// of the cart, so lookups that failed earlier are asked again.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	wait, err := parseBool(r.URL.Query().Get("wait"))
	if err != nil {
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid wait parameter")
		return
	}
	if h.respondIfNewSession(w, r) {
		return
	}
	session, s, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	snap := s.Snapshot()
	reconcile.Revisit(h.lookups, snap)
	var view reconcile.View
	if wait {
		view = h.resolve(r.Context(), snap)
	} else {
		view = h.peek(r.Context(), snap)
	}
	web.RespondJSON(w, h.logger, http.StatusOK, toCartDto(session, snap, view))
}

// RefreshCart forgets failed lookups for the items in the cart and resolves them again.
func (h *Handler) RefreshCart(w http.ResponseWriter, r *http.Request) {
	if h.respondIfNewSession(w, r) {
		return
	}
	session, s, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	snap := s.Snapshot()
	ctx, cancel := context.WithTimeout(r.Context(), h.resolveTimeout)
	defer cancel()
	view, err := reconcile.Refresh(ctx, h.lookups, snap)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Cart refresh did not settle", "error", err)
	}
	web.RespondJSON(w, h.logger, http.StatusOK, toCartDto(session, snap, view))
}

// AddItem looks the product up in the catalog and adds it to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	dto, ok := web.DecodeValid[AddItemDto](w, r, h.logger, h.validate)
	if !ok {
		return
	}
	session, s, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProductBySlug(r.Context(), dto.Slug)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrProductNotFound) {
			h.logger.WarnContext(r.Context(), "Product not found", "slug", dto.Slug)
			web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Product %s not found", dto.Slug))
			return
		}
		h.logger.ErrorContext(r.Context(), "Error retrieving product", "slug", dto.Slug, "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Catalog is unavailable, please try again")
		return
	}

	snap, err := h.actions(s).AddToCart(r.Context(), *product, dto.Quantity)
	h.respondMutation(w, r, session, snap, err, http.StatusCreated)
}

// UpdateItem sets the quantity of a line item. Quantities below 1 are raised to 1.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	slug, ok := web.ParseSlug(w, r, h.logger, "slug")
	if !ok {
		return
	}
	dto, ok := web.DecodeValid[UpdateItemDto](w, r, h.logger, h.validate)
	if !ok {
		return
	}
	session, s, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	snap, err := h.actions(s).UpdateCartItemQuantity(r.Context(), slug, *dto.Quantity)
	h.respondMutation(w, r, session, snap, err, http.StatusOK)
}

// RemoveItem deletes a line item. Removing an item that is not in the cart succeeds.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	slug, ok := web.ParseSlug(w, r, h.logger, "slug")
	if !ok {
		return
	}
	session, s, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	snap, err := h.actions(s).RemoveFromCart(r.Context(), slug)
	h.respondMutation(w, r, session, snap, err, http.StatusOK)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	session, s, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	snap, err := h.actions(s).ClearCart(r.Context())
	h.respondMutation(w, r, session, snap, err, http.StatusOK)
}

func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, session string, snap cart.Snapshot, err error, status int) {
	var warning string
	switch {
	case err == nil:
	case errors.Is(err, carterrors.ErrPersistence):
		h.logger.WarnContext(r.Context(), "Cart change not persisted", "error", err)
		warning = persistWarning
	case errors.Is(err, carterrors.ErrItemNotFound):
		web.RespondError(w, h.logger, http.StatusNotFound, "Item is not in the cart")
		return
	case errors.Is(err, carterrors.ErrInvalidQuantity), errors.Is(err, carterrors.ErrInvalidProduct):
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	default:
		h.logger.ErrorContext(r.Context(), "Error updating cart", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to update cart")
		return
	}

	dto := toCartDto(session, snap, h.peek(r.Context(), snap))
	dto.Warning = warning
	web.RespondJSON(w, h.logger, status, dto)
}

// respondIfNewSession answers a read of a session issued on this very request with an empty cart, without opening
// a store for it.
func (h *Handler) respondIfNewSession(w http.ResponseWriter, r *http.Request) bool {
	if !web.IsNewSession(r.Context()) {
		return false
	}
	session, _ := web.GetSession(r.Context())
	empty := cart.NewSnapshot(nil, 1)
	web.RespondJSON(w, h.logger, http.StatusOK, toCartDto(session, empty, reconcile.Build(empty, h.lookups.Peek)))
	return true
}

// cartFor returns the store of the request's cart session, writing an error response on failure.
func (h *Handler) cartFor(w http.ResponseWriter, r *http.Request) (string, *store.Store, bool) {
	session, ok := h.sessionFor(w, r)
	if !ok {
		return "", nil, false
	}
	s, err := h.carts.Get(r.Context(), session)
	if err != nil {
		h.respondOpenError(w, r, err)
		return "", nil, false
	}
	return session, s, true
}

// holdCartFor is cartFor for long-lived readers. The store stays open until release is called.
func (h *Handler) holdCartFor(w http.ResponseWriter, r *http.Request) (string, *store.Store, func(), bool) {
	session, ok := h.sessionFor(w, r)
	if !ok {
		return "", nil, nil, false
	}
	s, release, err := h.carts.Hold(r.Context(), session)
	if err != nil {
		h.respondOpenError(w, r, err)
		return "", nil, nil, false
	}
	return session, s, release, true
}

func (h *Handler) sessionFor(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := web.GetSession(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "Cart session missing from request context")
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Cart session is missing")
	}
	return session, ok
}

func (h *Handler) respondOpenError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "Error opening cart", "error", err)
	web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Cart is unavailable, please try again")
}

func (h *Handler) actions(s *store.Store) *facade.Actions {
	return facade.NewActions(s, h.notifier, h.logger)
}

// resolve waits for every item of snap, bounded by the resolve timeout. A timeout yields a partial view.
func (h *Handler) resolve(ctx context.Context, snap cart.Snapshot) reconcile.View {
	ctx, cancel := context.WithTimeout(ctx, h.resolveTimeout)
	defer cancel()
	view, err := reconcile.Resolve(ctx, h.lookups, snap)
	if err != nil {
		h.logger.WarnContext(ctx, "Cart did not settle in time", "loading", view.Totals.Loading, "error", err)
	}
	return view
}

// peek builds the view from settled lookups and starts lookups for the rest in the background.
func (h *Handler) peek(ctx context.Context, snap cart.Snapshot) reconcile.View {
	view := reconcile.Build(snap, h.lookups.Peek)
	if view.Settled() {
		return view
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.resolveTimeout)
		defer cancel()
		if _, err := reconcile.Resolve(ctx, h.lookups, snap); err != nil {
			h.logger.DebugContext(ctx, "Background cart lookup did not settle", slog.Any("error", err))
		}
	}()
	return view
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
