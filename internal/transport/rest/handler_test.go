package rest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/reconcile"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/storage"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/store"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	catalogerrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/notify"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/web"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n notify.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// unavailableCatalog fails every call.
type unavailableCatalog struct{}

func (unavailableCatalog) GetProductBySlug(context.Context, string) (*catalog.Product, error) {
	return nil, catalogerrors.ErrCatalogUnavailable
}

func (unavailableCatalog) GetProducts(context.Context) ([]catalog.Product, error) {
	return nil, catalogerrors.ErrCatalogUnavailable
}

func (unavailableCatalog) GetProductsByCategory(context.Context, string) ([]catalog.Product, error) {
	return nil, catalogerrors.ErrCatalogUnavailable
}

// readOnlyStorage loads like memory storage and rejects every save.
type readOnlyStorage struct {
	*storage.Memory
}

func (readOnlyStorage) Save(context.Context, string, cart.Snapshot) error {
	return errors.New("read-only replica")
}

type testEnv struct {
	router   *chi.Mux
	registry *store.Registry
	catalog  *catalog.InMemory
	notifier *mockNotifier
	session  string
}

func compareAt(m money.Money) *money.Money {
	return &m
}

func newTestEnv(t *testing.T, st storage.Storage, catalogClient catalog.Client) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inMemory := catalog.NewInMemory(
		catalog.Product{ID: "1", Slug: "a", Name: "Brass Diya", Price: 1000, Categories: []string{"festive"}, InStock: true},
		catalog.Product{ID: "2", Slug: "b", Name: "Silk Scarf", Price: 2000, CompareAtPrice: compareAt(2500), InStock: true},
	)
	if catalogClient == nil {
		catalogClient = inMemory
	}
	registry := store.NewRegistry(st, "", logger)
	t.Cleanup(registry.Close)

	notifier := new(mockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()

	h := NewHandler(registry, catalogClient, reconcile.NewLookupCache(catalogClient), notifier, time.Second, logger)
	mux := chi.NewRouter()
	h.RegisterRoutes(mux)
	return &testEnv{router: mux, registry: registry, catalog: inMemory, notifier: notifier, session: uuid.NewString()}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(web.SessionHeader, e.session)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// seed puts items straight into the session's cart without touching the lookup cache.
func (e *testEnv) seed(t *testing.T, slug string, quantity int) {
	t.Helper()
	s, err := e.registry.Get(context.Background(), e.session)
	require.NoError(t, err)
	p, err := e.catalog.GetProductBySlug(context.Background(), slug)
	require.NoError(t, err)
	_, err = s.AddItem(context.Background(), *p, quantity)
	require.NoError(t, err)
}

func decodeCart(t *testing.T, rr *httptest.ResponseRecorder) CartDto {
	t.Helper()
	var dto CartDto
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto), rr.Body.String())
	return dto
}

func Test_Handler_EmptyCartIssuesSession(t *testing.T) {
	// given
	env := newTestEnv(t, storage.NewMemory(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rr := httptest.NewRecorder()

	// when
	env.router.ServeHTTP(rr, req)

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	session := rr.Header().Get(web.SessionHeader)
	_, err := uuid.Parse(session)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"session":"`+session+`","version":1,"items":[],
		"totals":{"subtotal":"0.00","totalMRP":"0.00","totalSavings":"0.00","itemCount":0,
			"resolved":0,"loading":0,"unavailable":0,"excludesUnavailable":false},
		"totalItems":0,"totalPrice":"0.00"}`, rr.Body.String())
	assert.Zero(t, env.registry.Len(), "reading a cart of a new session must not open a store")
}

func Test_Handler_Scenario(t *testing.T) {
	// given
	env := newTestEnv(t, storage.NewMemory(), nil)

	// when
	rr := env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"a","quantity":2}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"b","quantity":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = env.do(t, http.MethodGet, "/api/v1/cart?wait=true", "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	dto := decodeCart(t, rr)
	require.Len(t, dto.Items, 2)
	assert.Equal(t, "a", dto.Items[0].Slug)
	assert.Equal(t, "b", dto.Items[1].Slug)
	assert.Equal(t, money.Money(4000), dto.Totals.Subtotal)
	assert.Equal(t, money.Money(4500), dto.Totals.TotalMRP)
	assert.Equal(t, money.Money(500), dto.Totals.TotalSavings)
	assert.Equal(t, 3, dto.TotalItems)
	assert.Equal(t, money.Money(4000), dto.TotalPrice)
	assert.Contains(t, rr.Body.String(), `"subtotal":"40.00"`)
	env.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func Test_Handler_AddItem(t *testing.T) {
	testCases := []struct {
		name         string
		catalog      catalog.Client
		body         string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "merges into existing line",
			body:         `{"slug":"a","quantity":3}`,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "unknown product",
			body:         `{"slug":"nope","quantity":1}`,
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Product nope not found"}`,
		},
		{
			name:         "zero quantity",
			body:         `{"slug":"a","quantity":0}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"Quantity":"failed on rule: required"}}`,
		},
		{
			name:         "negative quantity",
			body:         `{"slug":"a","quantity":-1}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"Quantity":"failed on rule: gte"}}`,
		},
		{
			name:         "quantity above limit",
			body:         `{"slug":"a","quantity":1000000}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"validation_errors":{"Quantity":"failed on rule: lte"}}`,
		},
		{
			name:         "merged quantity above limit",
			body:         `{"slug":"a","quantity":999999}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"invalid quantity: 999999 more of a would exceed 999999"}`,
		},
		{
			name:         "unknown field",
			body:         `{"slug":"a","quantity":1,"price":1}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name:         "catalog unavailable",
			catalog:      unavailableCatalog{},
			body:         `{"slug":"a","quantity":1}`,
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"error":"Catalog is unavailable, please try again"}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			env := newTestEnv(t, storage.NewMemory(), tc.catalog)
			if tc.catalog == nil {
				require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"a","quantity":1}`).Code)
			}

			// when
			rr := env.do(t, http.MethodPost, "/api/v1/cart/items", tc.body)

			// then
			require.Equal(t, tc.expectedCode, rr.Code, rr.Body.String())
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
				return
			}
			dto := decodeCart(t, rr)
			require.Len(t, dto.Items, 1)
			assert.Equal(t, 4, dto.Items[0].Quantity)
		})
	}
}

func Test_Handler_UpdateItem(t *testing.T) {
	testCases := []struct {
		name         string
		slug         string
		body         string
		expectedCode int
		expectedQty  int
	}{
		{name: "set quantity", slug: "a", body: `{"quantity":5}`, expectedCode: http.StatusOK, expectedQty: 5},
		{name: "zero clamps to one", slug: "a", body: `{"quantity":0}`, expectedCode: http.StatusOK, expectedQty: 1},
		{name: "item not in cart", slug: "b", body: `{"quantity":2}`, expectedCode: http.StatusNotFound},
		{name: "missing quantity", slug: "a", body: `{}`, expectedCode: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			env := newTestEnv(t, storage.NewMemory(), nil)
			require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"a","quantity":2}`).Code)

			// when
			rr := env.do(t, http.MethodPut, "/api/v1/cart/items/"+tc.slug, tc.body)

			// then
			require.Equal(t, tc.expectedCode, rr.Code, rr.Body.String())
			if tc.expectedCode == http.StatusOK {
				dto := decodeCart(t, rr)
				require.Len(t, dto.Items, 1)
				assert.Equal(t, tc.expectedQty, dto.Items[0].Quantity)
				assert.Equal(t, tc.expectedQty, dto.TotalItems)
			}
		})
	}
}

func Test_Handler_RemoveAndClear(t *testing.T) {
	// given
	env := newTestEnv(t, storage.NewMemory(), nil)
	env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"a","quantity":2}`)
	env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"b","quantity":1}`)

	// when removing an item that is not in the cart
	rr := env.do(t, http.MethodDelete, "/api/v1/cart/items/zzz", "")

	// then nothing changes
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, decodeCart(t, rr).TotalItems)

	// when
	rr = env.do(t, http.MethodDelete, "/api/v1/cart/items/a", "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	dto := decodeCart(t, rr)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, "b", dto.Items[0].Slug)

	// when
	rr = env.do(t, http.MethodDelete, "/api/v1/cart", "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	dto = decodeCart(t, rr)
	assert.Empty(t, dto.Items)
	assert.Zero(t, dto.TotalItems)
}

func Test_Handler_SessionsAreIsolated(t *testing.T) {
	// given
	env := newTestEnv(t, storage.NewMemory(), nil)
	env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"a","quantity":2}`)

	// when
	other := *env
	other.session = uuid.NewString()
	rr := other.do(t, http.MethodGet, "/api/v1/cart", "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decodeCart(t, rr).TotalItems)
}

func Test_Handler_PersistenceWarning(t *testing.T) {
	// given
	env := newTestEnv(t, readOnlyStorage{storage.NewMemory()}, nil)

	// when
	rr := env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"a","quantity":1}`)

	// then the change is applied and the shopper is warned
	require.Equal(t, http.StatusCreated, rr.Code)
	dto := decodeCart(t, rr)
	assert.Equal(t, persistWarning, dto.Warning)
	assert.Equal(t, 1, dto.TotalItems)
	env.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(n notify.Notification) bool {
		return n.Kind == notify.KindPersistFailed
	}))
}

func Test_Handler_DeletedProductAndRefresh(t *testing.T) {
	// given
	env := newTestEnv(t, storage.NewMemory(), nil)
	env.seed(t, "a", 1)
	env.seed(t, "b", 2)
	unpublished, err := env.catalog.GetProductBySlug(context.Background(), "b")
	require.NoError(t, err)
	env.catalog.Delete("b")

	// when
	dto := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart?wait=true", ""))

	// then
	require.Len(t, dto.Items, 2)
	assert.Equal(t, reconcile.Item{Slug: "b", Quantity: 2}, dto.Items[1])
	assert.Equal(t, money.Money(1000), dto.Totals.Subtotal)
	assert.True(t, dto.Totals.ExcludesUnavailable)

	// when the product comes back, the next page load picks it up
	env.catalog.Put(*unpublished)
	dto = decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart?wait=true", ""))

	// then
	require.NotNil(t, dto.Items[1].Product)
	assert.Equal(t, money.Money(5000), dto.Totals.Subtotal)
	assert.False(t, dto.Totals.ExcludesUnavailable)
}

func Test_Handler_RefreshRetriesFailedLookups(t *testing.T) {
	// given
	env := newTestEnv(t, storage.NewMemory(), nil)
	env.seed(t, "b", 1)
	unpublished, err := env.catalog.GetProductBySlug(context.Background(), "b")
	require.NoError(t, err)
	env.catalog.Delete("b")
	dto := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart?wait=true", ""))
	require.Nil(t, dto.Items[0].Product)

	// when
	env.catalog.Put(*unpublished)
	dto = decodeCart(t, env.do(t, http.MethodPost, "/api/v1/cart/refresh", ""))

	// then
	require.NotNil(t, dto.Items[0].Product)
	assert.Equal(t, money.Money(2000), dto.Totals.Subtotal)
}

// flakyCatalog fails every product lookup while down is set.
type flakyCatalog struct {
	catalog.Client
	down  atomic.Bool
	calls atomic.Int32
}

func (f *flakyCatalog) GetProductBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	f.calls.Add(1)
	if f.down.Load() {
		return nil, catalogerrors.ErrCatalogUnavailable
	}
	return f.Client.GetProductBySlug(ctx, slug)
}

func Test_Handler_PageLoadAfterCatalogRecovers(t *testing.T) {
	// given a lookup that failed during an outage
	flaky := &flakyCatalog{}
	env := newTestEnv(t, storage.NewMemory(), flaky)
	flaky.Client = env.catalog
	env.seed(t, "a", 1)
	flaky.down.Store(true)
	dto := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart?wait=true", ""))
	require.Equal(t, 1, dto.Totals.Unavailable)

	// when the catalog recovers and another shopper loads a cart with the same product
	flaky.down.Store(false)
	first := env.session
	env.session = uuid.NewString()
	env.seed(t, "a", 2)
	dto = decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart?wait=true", ""))

	// then
	assert.Zero(t, dto.Totals.Unavailable)
	assert.Equal(t, money.Money(2000), dto.Totals.Subtotal)
	assert.Equal(t, int32(2), flaky.calls.Load())

	// and the first shopper's next page load resolves too
	env.session = first
	dto = decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart?wait=true", ""))
	require.NotNil(t, dto.Items[0].Product)
	assert.Equal(t, money.Money(1000), dto.Totals.Subtotal)
}

func Test_Handler_InvalidWait(t *testing.T) {
	env := newTestEnv(t, storage.NewMemory(), nil)

	rr := env.do(t, http.MethodGet, "/api/v1/cart?wait=maybe", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func Test_Handler_Products(t *testing.T) {
	testCases := []struct {
		name         string
		catalog      catalog.Client
		target       string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "list",
			target:       "/api/v1/products",
			expectedCode: http.StatusOK,
		},
		{
			name:         "by slug",
			target:       "/api/v1/products/b",
			expectedCode: http.StatusOK,
			expectedBody: `{"id":"2","slug":"b","name":"Silk Scarf","price":"20.00","compareAtPrice":"25.00","inStock":true}`,
		},
		{
			name:         "unknown slug",
			target:       "/api/v1/products/zzz",
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Product zzz not found"}`,
		},
		{
			name:         "category",
			target:       "/api/v1/categories/festive/products",
			expectedCode: http.StatusOK,
			expectedBody: `[{"id":"1","slug":"a","name":"Brass Diya","price":"10.00","categories":["festive"],"inStock":true}]`,
		},
		{
			name:         "empty category",
			target:       "/api/v1/categories/none/products",
			expectedCode: http.StatusOK,
			expectedBody: `[]`,
		},
		{
			name:         "catalog unavailable",
			catalog:      unavailableCatalog{},
			target:       "/api/v1/products",
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"error":"Failed to fetch products"}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			env := newTestEnv(t, storage.NewMemory(), tc.catalog)

			// when
			rr := env.do(t, http.MethodGet, tc.target, "")

			// then
			require.Equal(t, tc.expectedCode, rr.Code, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
		})
	}
}

func Test_Handler_HealthCheck(t *testing.T) {
	env := newTestEnv(t, storage.NewMemory(), nil)

	rr := env.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func Test_Handler_StreamCart(t *testing.T) {
	// given
	env := newTestEnv(t, storage.NewMemory(), nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/cart/stream", nil)
	require.NoError(t, err)
	req.Header.Set(web.SessionHeader, env.session)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan CartDto, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var dto CartDto
				if json.Unmarshal([]byte(data), &dto) == nil {
					events <- dto
				}
			}
		}
	}()
	next := func(cond func(CartDto) bool) CartDto {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case dto, ok := <-events:
				require.True(t, ok, "stream ended")
				if cond(dto) {
					return dto
				}
			case <-timeout:
				t.Fatal("timed out waiting for cart event")
			}
		}
	}

	// then the current cart arrives first
	first := next(func(CartDto) bool { return true })
	assert.Empty(t, first.Items)

	// when
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/cart/items", `{"slug":"b","quantity":1}`).Code)

	// then the new item is streamed, and later resolved
	resolved := next(func(dto CartDto) bool {
		return len(dto.Items) == 1 && dto.Items[0].Product != nil
	})
	assert.Equal(t, money.Money(500), resolved.Totals.TotalSavings)
	assert.Equal(t, env.session, resolved.Session)
}
