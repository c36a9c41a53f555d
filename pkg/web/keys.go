package web

import (
	"context"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/logger"
)

type requestIDKey struct{}

type newSessionKey struct{}

const (
	// SessionHeader carries the cart session identifier on requests and responses.
	SessionHeader = "X-Cart-Session"
	// SessionCookie is the cookie fallback for SessionHeader.
	SessionCookie = "cart_session"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and a boolean indicating whether it was found.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// GetSession retrieves the cart session set by CartSession.
func GetSession(ctx context.Context) (string, bool) {
	return logger.SessionFrom(ctx)
}

// IsNewSession reports whether CartSession issued the session on this request, i.e. the client had no cart yet.
func IsNewSession(ctx context.Context) bool {
	issued, _ := ctx.Value(newSessionKey{}).(bool)
	return issued
}
