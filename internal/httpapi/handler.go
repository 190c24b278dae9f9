// Package httpapi exposes the checkout core over HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"checkoutservice/internal/cart"
	"checkoutservice/internal/identity"
	"checkoutservice/internal/idempotency"
	"checkoutservice/internal/order"
	"checkoutservice/internal/platform/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Identity headers set by the authentication gateway in front of the service.
const (
	HeaderUserID         = "X-User-ID"
	HeaderUserRole       = "X-User-Role"
	HeaderIdempotencyKey = "Idempotency-Key"
)

type Handler struct {
	carts  *cart.Service
	orders *order.Coordinator
	idem   idempotency.Store
	logger observability.Logger
}

func NewHandler(carts *cart.Service, orders *order.Coordinator, idem idempotency.Store, logger observability.Logger) *Handler {
	return &Handler{
		carts:  carts,
		orders: orders,
		idem:   idem,
		logger: logger,
	}
}

// Router builds the instrumented route tree.
func (h *Handler) Router(tp trace.TracerProvider) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireCaller)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Get("/count", h.CountCart)
			r.Post("/lines", h.AddCartLine)
			r.Put("/lines/{lineID}", h.UpdateCartLine)
			r.Delete("/lines/{lineID}", h.RemoveCartLine)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.PlaceOrder)
			r.Post("/checkout", h.Checkout)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/cancel", h.CancelOrder)
		})

		r.With(requireAdmin).Patch("/admin/orders/{orderID}/status", h.UpdateOrderStatus)
	})

	return otelhttp.NewHandler(r, "checkout-http",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

type callerKey struct{}

// requireCaller trusts the identity resolved upstream and rejects requests
// that carry none.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "missing " + HeaderUserID})
			return
		}
		caller := identity.Caller{UserID: userID, Role: identity.ParseRole(r.Header.Get(HeaderUserRole))}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r).IsAdmin() {
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) identity.Caller {
	caller, _ := r.Context().Value(callerKey{}).(identity.Caller)
	return caller
}
