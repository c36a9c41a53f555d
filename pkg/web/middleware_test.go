package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionEcho() http.Handler {
	return CartSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := GetSession(r.Context())
		w.Header().Set("X-New-Session", strconv.FormatBool(IsNewSession(r.Context())))
		_, _ = io.WriteString(w, session)
	}))
}

func Test_CartSession(t *testing.T) {
	existing := uuid.NewString()
	testCases := []struct {
		name          string
		prepare       func(r *http.Request)
		expectSession string
		expectCookie  bool
	}{
		{
			name:          "header session is kept",
			prepare:       func(r *http.Request) { r.Header.Set(SessionHeader, existing) },
			expectSession: existing,
		},
		{
			name:          "cookie session is kept",
			prepare:       func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: existing}) },
			expectSession: existing,
		},
		{
			name:         "missing session is issued",
			prepare:      func(r *http.Request) {},
			expectCookie: true,
		},
		{
			name:         "malformed session is replaced",
			prepare:      func(r *http.Request) { r.Header.Set(SessionHeader, "not-a-uuid") },
			expectCookie: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.prepare(req)
			rr := httptest.NewRecorder()

			// when
			sessionEcho().ServeHTTP(rr, req)

			// then
			body := rr.Body.String()
			_, err := uuid.Parse(body)
			require.NoError(t, err)
			assert.Equal(t, body, rr.Header().Get(SessionHeader))
			assert.Equal(t, strconv.FormatBool(tc.expectCookie), rr.Header().Get("X-New-Session"))
			if tc.expectSession != "" {
				assert.Equal(t, tc.expectSession, body)
			}
			cookies := rr.Result().Cookies()
			if tc.expectCookie {
				require.Len(t, cookies, 1)
				assert.Equal(t, body, cookies[0].Value)
			} else {
				assert.Empty(t, cookies)
			}
		})
	}
}

func Test_Recoverer(t *testing.T) {
	// given
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()

	// when
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// then
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
