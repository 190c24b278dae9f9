package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/identity"
	"checkoutservice/internal/order"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	ShippingAddress string             `json:"shipping_address"`
	PhoneNumber     string             `json:"phone_number"`
	Lines           []OrderLineRequest `json:"lines"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PhoneNumber     string `json:"phone_number"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OrderLineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type OrderResponse struct {
	ID              string              `json:"id"`
	Number          string              `json:"order_number"`
	UserID          string              `json:"user_id"`
	Status          string              `json:"status"`
	Total           string              `json:"total"`
	ShippingAddress string              `json:"shipping_address"`
	PhoneNumber     string              `json:"phone_number,omitempty"`
	Lines           []OrderLineResponse `json:"lines"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type OrderPageResponse struct {
	Items      []OrderResponse `json:"items"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
}

func toOrder(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		Number:          o.Number,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Total:           o.Total.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		PhoneNumber:     o.PhoneNumber,
		Lines:           make([]OrderLineResponse, 0, len(o.Lines)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, OrderLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Subtotal:    l.Subtotal().StringFixed(2),
		})
	}
	return resp
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}
	lines := make([]order.LineRequest, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, order.LineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	caller := callerFrom(r)
	h.placeOnce(w, r, caller, func(ctx context.Context) (*order.Order, error) {
		return h.orders.PlaceOrder(ctx, caller.UserID, order.PlaceOrderRequest{
			ShippingAddress: req.ShippingAddress,
			PhoneNumber:     req.PhoneNumber,
			Lines:           lines,
		})
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}

	caller := callerFrom(r)
	h.placeOnce(w, r, caller, func(ctx context.Context) (*order.Order, error) {
		return h.orders.PlaceOrderFromCart(ctx, caller.UserID, req.ShippingAddress, req.PhoneNumber)
	})
}

// placeOnce runs place at most once per Idempotency-Key and caller. A replay
// returns the order the first request created.
func (h *Handler) placeOnce(w http.ResponseWriter, r *http.Request, caller identity.Caller, place func(ctx context.Context) (*order.Order, error)) {
	ctx := r.Context()
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" {
		o, err := place(ctx)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrder(o))
		return
	}

	scoped := caller.UserID + ":" + key
	claim, err := h.idem.Claim(ctx, scoped)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if claim.OrderID != "" {
		o, err := h.orders.GetOrder(ctx, caller, claim.OrderID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, toOrder(o))
		return
	}
	if claim.InFlight() {
		h.writeError(w, r, apperr.New(apperr.Conflict, "a request with this idempotency key is in progress"))
		return
	}

	// The claim must be settled even if the client went away.
	settleCtx := context.WithoutCancel(ctx)
	o, err := place(ctx)
	if err != nil {
		if abandonErr := h.idem.Abandon(settleCtx, scoped); abandonErr != nil {
			h.logger.Warn("Failed to release idempotency key", zap.String("key", scoped), zap.Error(abandonErr))
		}
		h.writeError(w, r, err)
		return
	}
	if err := h.idem.Complete(settleCtx, scoped, o.ID); err != nil {
		h.logger.Warn("Failed to record idempotency key", zap.String("key", scoped), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, toOrder(o))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := pageFrom(q.Get("page"), q.Get("per_page"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filter := order.ListFilter{UserID: q.Get("user_id")}
	if raw := q.Get("status"); raw != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = status
	}

	result, err := h.orders.ListOrders(r.Context(), callerFrom(r), filter, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := OrderPageResponse{
		Items:      make([]OrderResponse, 0, len(result.Items)),
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
		Page:       result.Page,
		PerPage:    result.PerPage,
	}
	for _, o := range result.Items {
		resp.Items = append(resp.Items, toOrder(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), callerFrom(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CancelOrder(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func pageFrom(rawPage, rawPerPage string) (order.Page, error) {
	var p order.Page
	var err error
	if rawPage != "" {
		if p.Number, err = strconv.Atoi(rawPage); err != nil {
			return p, apperr.New(apperr.InvalidInput, "page must be a number")
		}
	}
	if rawPerPage != "" {
		if p.PerPage, err = strconv.Atoi(rawPerPage); err != nil {
			return p, apperr.New(apperr.InvalidInput, "per_page must be a number")
		}
	}
	return p, nil
}
