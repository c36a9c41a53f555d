package transport

import (
	"context"
	"io"
	"net/http"
	"time"
)

type timeoutTransport struct {
	next    http.RoundTripper
	timeout time.Duration
}

// NewTimeout bounds every request, body read included, by timeout.
func NewTimeout(timeout time.Duration, next http.RoundTripper) http.RoundTripper {
	return &timeoutTransport{next: next, timeout: timeout}
}

func (t *timeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request context once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
