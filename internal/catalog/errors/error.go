// Package errors provides sentinel errors for catalog lookups.
package errors

import "errors"

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)
