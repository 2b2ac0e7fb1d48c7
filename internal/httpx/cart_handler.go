package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-digital-market.git/internal/market"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	Repo *market.CartRepo
}

type PutCartItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CartItemResp struct {
	ProductID string    `json:"product_id"`
	Qty       int       `json:"qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.list)
	r.Put("/cart/items", h.put)
	r.Delete("/cart/items/{productID}", h.remove)
}

func (h *CartHandler) put(w http.ResponseWriter, r *http.Request) {
	buyerID, _ := caller(r)
	if buyerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing X-User-Id"})
		return
	}
	var req PutCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context3s(r)
	defer cancel()

	if err := h.Repo.Put(ctx, buyerID, req.ProductID, req.Qty); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	buyerID, _ := caller(r)
	productID := chi.URLParam(r, "productID")

	ctx, cancel := context3s(r)
	defer cancel()

	if err := h.Repo.Remove(ctx, buyerID, productID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	buyerID, _ := caller(r)

	ctx, cancel := context3s(r)
	defer cancel()

	items, err := h.Repo.List(ctx, buyerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]CartItemResp, 0, len(items))
	for _, it := range items {
		out = append(out, CartItemResp{ProductID: it.ProductID, Qty: it.Qty, UpdatedAt: it.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}
