package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/cart"
	"checkoutservice/internal/catalog"
	"checkoutservice/internal/idempotency"
	"checkoutservice/internal/order"
	"checkoutservice/internal/platform/txn"
	"checkoutservice/internal/pricing"
	"checkoutservice/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	store := memory.NewStore()
	store.PutUser("alice")
	store.PutUser("bob")
	store.PutProduct(catalog.Product{ID: "lamp", Name: "Lamp", Price: decimal.RequireFromString("30.00"), Stock: 5})

	logger := zap.NewNop()
	tp := noop.NewTracerProvider()
	tracer := tp.Tracer("test")
	carts := cart.NewService(store.Carts(), store, store, store, txn.Passthrough{}, logger, tracer)
	coord := order.NewCoordinator(order.Dependencies{
		Orders: store.Orders(),
		Ledger: store,
		Prices: pricing.NewSnapshotter(store),
		Users:  store,
		Carts:  carts,
		Tx:     txn.Passthrough{},
		Logger: logger,
		Tracer: tracer,
	})
	h := NewHandler(carts, coord, idempotency.NewMemoryStore(time.Hour), logger)
	return &testServer{t: t, handler: h.Router(tp), store: store}
}

func (s *testServer) do(method, path, userID string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzNeedsNoIdentity(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartToOrderFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/cart/lines", "alice", AddCartLineRequest{ProductID: "lamp", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	line := decode[CartLineResponse](t, rec)

	rec = s.do(http.MethodPut, "/cart/lines/"+line.ID, "bob", UpdateCartLineRequest{Quantity: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[CartResponse](t, rec)
	assert.Equal(t, "60.00", summary.TotalPrice)

	rec = s.do(http.MethodPost, "/orders/checkout", "alice", CheckoutRequest{ShippingAddress: "1 Main St"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[OrderResponse](t, rec)
	assert.Equal(t, "PENDING", placed.Status)
	assert.Equal(t, "60.00", placed.Total)

	rec = s.do(http.MethodGet, "/cart/count", "alice", nil)
	assert.JSONEq(t, `{"count":0}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/orders/"+placed.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/orders/"+placed.ID+"/cancel", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decode[OrderResponse](t, rec).Status)

	rec = s.do(http.MethodPost, "/orders/"+placed.ID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.OrderCannotBeCancelled.String(), decode[ErrorResponse](t, rec).Error)
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body any
		want int
	}{
		{"insufficient stock", PlaceOrderRequest{ShippingAddress: "x", Lines: []OrderLineRequest{{ProductID: "lamp", Quantity: 9}}}, http.StatusConflict},
		{"unknown product", PlaceOrderRequest{ShippingAddress: "x", Lines: []OrderLineRequest{{ProductID: "ghost", Quantity: 1}}}, http.StatusNotFound},
		{"bad quantity", PlaceOrderRequest{ShippingAddress: "x", Lines: []OrderLineRequest{{ProductID: "lamp", Quantity: 0}}}, http.StatusBadRequest},
		{"malformed body", "not an object", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/orders", "alice", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestIdempotentCheckoutReplaysOrder(t *testing.T) {
	s := newTestServer(t)
	body := PlaceOrderRequest{ShippingAddress: "1 Main St", Lines: []OrderLineRequest{{ProductID: "lamp", Quantity: 2}}}

	first := s.do(http.MethodPost, "/orders", "alice", body, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := s.do(http.MethodPost, "/orders", "alice", body, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())

	assert.Equal(t, decode[OrderResponse](t, first).ID, decode[OrderResponse](t, second).ID)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	stock, err := s.store.Available(t.Context(), "lamp")
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	// Failed attempts free the key for a corrected retry.
	bad := PlaceOrderRequest{ShippingAddress: "1 Main St", Lines: []OrderLineRequest{{ProductID: "lamp", Quantity: 50}}}
	rec := s.do(http.MethodPost, "/orders", "alice", bad, HeaderIdempotencyKey, "k-2")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(http.MethodPost, "/orders", "alice", body, HeaderIdempotencyKey, "k-2")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminStatusOverride(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/orders", "alice", PlaceOrderRequest{ShippingAddress: "x", Lines: []OrderLineRequest{{ProductID: "lamp", Quantity: 1}}})
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decode[OrderResponse](t, rec)

	path := "/admin/orders/" + placed.ID + "/status"
	rec = s.do(http.MethodPatch, path, "alice", UpdateStatusRequest{Status: "SHIPPED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, path, "ops", UpdateStatusRequest{Status: "bogus"}, HeaderUserRole, "admin")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, path, "ops", UpdateStatusRequest{Status: "shipped"}, HeaderUserRole, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SHIPPED", decode[OrderResponse](t, rec).Status)

	rec = s.do(http.MethodPatch, path, "ops", UpdateStatusRequest{Status: "PENDING"}, HeaderUserRole, "admin")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListOrdersPaging(t *testing.T) {
	s := newTestServer(t)
	for range 3 {
		rec := s.do(http.MethodPost, "/orders", "alice", PlaceOrderRequest{ShippingAddress: "x", Lines: []OrderLineRequest{{ProductID: "lamp", Quantity: 1}}})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(http.MethodGet, "/orders?page=1&per_page=2", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[OrderPageResponse](t, rec)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	rec = s.do(http.MethodGet, "/orders", "bob", nil)
	assert.Zero(t, decode[OrderPageResponse](t, rec).TotalCount)

	rec = s.do(http.MethodGet, "/orders?page=abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/orders?page=4611686018427387905&per_page=20", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
