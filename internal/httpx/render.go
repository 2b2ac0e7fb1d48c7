package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-digital-market.git/internal/market"
)

// timeout per-request: repo call memegang row lock, jangan biarkan
// transaksi ngegantung lebih lama dari ini.
func context5s(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

func context3s(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 3*time.Second)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr memetakan taksonomi error domain ke status HTTP.
// Validation -> 400, NotFound -> 404, Forbidden -> 403, Conflict -> 409.
func writeErr(w http.ResponseWriter, err error) {
	var stock *market.InsufficientStockError
	if errors.As(err, &stock) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "insufficient_stock",
			"details": stock.Details,
		})
		return
	}

	var code int
	switch {
	case errors.Is(err, market.ErrInvalidDemand), errors.Is(err, market.ErrEmptyCart):
		code = http.StatusBadRequest
	case errors.Is(err, market.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, market.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, market.ErrProductUnavailable),
		errors.Is(err, market.ErrNotPayable),
		errors.Is(err, market.ErrAlreadyFulfilled),
		errors.Is(err, market.ErrWrongState):
		code = http.StatusConflict
	default:
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// Identitas caller disuplai layer auth di depan (gateway); di sini cuma
// dibaca dari header.
func caller(r *http.Request) (id string, isAdmin bool) {
	return r.Header.Get("X-User-Id"), r.Header.Get("X-User-Role") == "admin"
}

// ---- response DTO ----

type OrderResp struct {
	ID            string          `json:"id"`
	ExternalID    string          `json:"external_id,omitempty"`
	BuyerID       string          `json:"buyer_id"`
	TotalCents    int             `json:"total_cents"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Items         []OrderItemResp `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OrderItemResp struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"product_id"`
	SellerID      string     `json:"seller_id"`
	ProductItemID string     `json:"product_item_id"`
	PriceCents    int        `json:"price_cents"`
	Status        string     `json:"status"`
	FulfilledAt   *time.Time `json:"fulfilled_at,omitempty"`
}

func toOrderResp(o market.Order, items []market.OrderItem) OrderResp {
	resp := OrderResp{
		ID: o.ID, ExternalID: o.ExternalID, BuyerID: o.BuyerID, TotalCents: o.TotalCents,
		Status: string(o.Status), PaymentStatus: string(o.PaymentStatus), CreatedAt: o.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, toOrderItemResp(it))
	}
	return resp
}

func toOrderItemResp(it market.OrderItem) OrderItemResp {
	return OrderItemResp{
		ID: it.ID, ProductID: it.ProductID, SellerID: it.SellerID,
		ProductItemID: it.ProductItemID, PriceCents: it.PriceCents,
		Status: string(it.Status), FulfilledAt: it.FulfilledAt,
	}
}
