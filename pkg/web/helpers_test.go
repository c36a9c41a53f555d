package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quantityDto struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func Test_DecodeValid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	testCases := []struct {
		name         string
		body         string
		expectOK     bool
		expectedCode int
		expectedKey  string
	}{
		{name: "valid", body: `{"quantity":2}`, expectOK: true},
		{name: "malformed", body: `{"quantity":`, expectedCode: http.StatusBadRequest, expectedKey: "error"},
		{name: "unknown field", body: `{"qty":2}`, expectedCode: http.StatusBadRequest, expectedKey: "error"},
		{name: "rule violation", body: `{"quantity":0}`, expectedCode: http.StatusBadRequest, expectedKey: "validation_errors"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			// when
			dto, ok := DecodeValid[quantityDto](rr, req, logger, validator.New())

			// then
			require.Equal(t, tc.expectOK, ok)
			if tc.expectOK {
				assert.Equal(t, 2, dto.Quantity)
				return
			}
			assert.Equal(t, tc.expectedCode, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Contains(t, body, tc.expectedKey)
		})
	}
}

func Test_ParseSlug(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	router.Get("/items/{slug}", func(w http.ResponseWriter, r *http.Request) {
		slug, ok := ParseSlug(w, r, logger, "slug")
		if ok {
			_, _ = io.WriteString(w, slug)
		}
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/rose-hamper", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rose-hamper", rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/%20", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
