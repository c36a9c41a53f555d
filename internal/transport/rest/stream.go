package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/reconcile"
)

const streamHeartbeat = 25 * time.Second

// StreamCart sends the reconciled cart as server-sent events, one "cart" event per view, until the client goes
// away. Each connection follows the cart with its own reconciler over the shared lookup cache, and keeps the cart
// open while it lasts.
func (h *Handler) StreamCart(w http.ResponseWriter, r *http.Request) {
	session, s, release, ok := h.holdCartFor(w, r)
	if !ok {
		return
	}
	defer release()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.WarnContext(r.Context(), "Failed to clear write deadline", "error", err)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rec := reconcile.New(s, h.lookups, h.logger)
	views, unsubscribe := rec.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			snap := s.Snapshot()
			if snap.Version != view.Version {
				// a newer view is on its way
				continue
			}
			data, err := json.Marshal(toCartDto(session, snap, view))
			if err != nil {
				h.logger.ErrorContext(r.Context(), "Error encoding cart event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: cart\nid: %d\ndata: %s\n\n", view.Version, data); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			h.logger.DebugContext(r.Context(), "Stream flush failed", "error", err)
			return
		}
	}
}
