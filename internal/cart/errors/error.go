// Package errors provides sentinel errors for cart operations.
package errors

import "errors"

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidProduct  = errors.New("product has no slug")
	ErrItemNotFound    = errors.New("item not in cart")
	ErrPersistence     = errors.New("cart state could not be persisted")
	ErrRecordNotFound  = errors.New("cart record not found")
	ErrCorruptRecord   = errors.New("cart record is corrupt")
)
