package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"checkoutservice/internal/cart"

	"github.com/go-chi/chi/v5"
)

type AddCartLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartLineRequest struct {
	Quantity int `json:"quantity"`
}

type CartLineResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type CartSummaryLine struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   string    `json:"unit_price"`
	Stock       int       `json:"stock"`
	Quantity    int       `json:"quantity"`
	Subtotal    string    `json:"subtotal"`
	AddedAt     time.Time `json:"added_at"`
}

type CartResponse struct {
	UserID        string            `json:"user_id"`
	Lines         []CartSummaryLine `json:"lines"`
	TotalQuantity int               `json:"total_quantity"`
	TotalPrice    string            `json:"total_price"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toCartLine(l cart.Line) CartLineResponse {
	return CartLineResponse{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity, AddedAt: l.AddedAt}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sum, err := h.carts.Summary(r.Context(), callerFrom(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := CartResponse{
		UserID:        sum.UserID,
		Lines:         make([]CartSummaryLine, 0, len(sum.Lines)),
		TotalQuantity: sum.TotalQuantity,
		TotalPrice:    sum.TotalPrice.StringFixed(2),
		UpdatedAt:     sum.UpdatedAt,
	}
	for _, l := range sum.Lines {
		resp.Lines = append(resp.Lines, CartSummaryLine{
			ID:          l.LineID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Stock:       l.Stock,
			Quantity:    l.Quantity,
			Subtotal:    l.Subtotal.StringFixed(2),
			AddedAt:     l.AddedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CountCart(w http.ResponseWriter, r *http.Request) {
	n, err := h.carts.ItemCount(r.Context(), callerFrom(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) AddCartLine(w http.ResponseWriter, r *http.Request) {
	var req AddCartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}
	if req.ProductID == "" {
		badRequest(w, "product_id is required")
		return
	}

	line, err := h.carts.AddLine(r.Context(), callerFrom(r).UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartLine(line))
}

func (h *Handler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}

	line, err := h.carts.UpdateLine(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "lineID"), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartLine(line))
}

func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveLine(r.Context(), callerFrom(r).UserID, chi.URLParam(r, "lineID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), callerFrom(r).UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
