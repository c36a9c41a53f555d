package rest

import (
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/reconcile"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

// persistWarning is returned when a change was applied but could not be saved.
const persistWarning = "Your cart could not be saved and may not survive a refresh"

type AddItemDto struct {
	Slug     string `json:"slug" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"required,gte=1,lte=999999"`
}

type UpdateItemDto struct {
	Quantity *int `json:"quantity" validate:"required,lte=999999"`
}

// CartDto is the reconciled cart. TotalItems and TotalPrice come from the stored cart and use the prices seen when
// items were added; Totals only covers products resolved from the catalog.
type CartDto struct {
	Session    string           `json:"session"`
	Version    uint64           `json:"version"`
	Items      []reconcile.Item `json:"items"`
	Totals     reconcile.Totals `json:"totals"`
	TotalItems int              `json:"totalItems"`
	TotalPrice money.Money      `json:"totalPrice"`
	Warning    string           `json:"warning,omitempty"`
}

func toCartDto(session string, snap cart.Snapshot, view reconcile.View) CartDto {
	return CartDto{
		Session:    session,
		Version:    snap.Version,
		Items:      view.Items,
		Totals:     view.Totals,
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice,
	}
}
