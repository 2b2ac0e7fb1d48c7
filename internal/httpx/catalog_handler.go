package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-digital-market.git/internal/market"
	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	Repo *market.CatalogRepo
}

type CreateProductReq struct {
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
}

type SetProductStatusReq struct {
	Status string `json:"status"`
}

type AddItemsReq struct {
	Items []string `json:"items"` // satu payload per unit
}

type ProductResp struct {
	ID         string    `json:"id"`
	SellerID   string    `json:"seller_id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Status     string    `json:"status"`
	Available  int       `json:"available,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Post("/products/{id}/status", h.setStatus)
	r.Post("/products/{id}/items", h.addItems)
	r.Get("/products/{id}/stock", h.stock)
	r.Post("/product-items/{id}/disable", h.disableItem)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context3s(r)
	defer cancel()

	listings, err := h.Repo.ListActive(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]ProductResp, 0, len(listings))
	for _, l := range listings {
		out = append(out, ProductResp{
			ID: l.ID, SellerID: l.SellerID, Name: l.Name, PriceCents: l.PriceCents,
			Status: string(l.Status), Available: l.Available, CreatedAt: l.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, _ := caller(r)
	if sellerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing X-User-Id"})
		return
	}
	var req CreateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context3s(r)
	defer cancel()

	p, err := h.Repo.CreateProduct(ctx, sellerID, req.Name, req.PriceCents)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductResp{
		ID: p.ID, SellerID: p.SellerID, Name: p.Name, PriceCents: p.PriceCents,
		Status: string(p.Status), CreatedAt: p.CreatedAt,
	})
}

func (h *CatalogHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	callerID, isAdmin := caller(r)

	var req SetProductStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context3s(r)
	defer cancel()

	p, err := h.Repo.SetProductStatus(ctx, productID, callerID, isAdmin, market.ProductStatus(req.Status))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductResp{
		ID: p.ID, SellerID: p.SellerID, Name: p.Name, PriceCents: p.PriceCents,
		Status: string(p.Status), CreatedAt: p.CreatedAt,
	})
}

// addItems: restock — tiap entry jadi satu unit available di pool.
func (h *CatalogHandler) addItems(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	callerID, isAdmin := caller(r)

	var req AddItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	ids, err := h.Repo.AddItems(ctx, productID, callerID, isAdmin, req.Items)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"added": len(ids), "item_ids": ids})
}

func (h *CatalogHandler) stock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	callerID, isAdmin := caller(r)

	ctx, cancel := context3s(r)
	defer cancel()

	p, err := h.Repo.GetProduct(ctx, productID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !isAdmin && p.SellerID != callerID {
		writeErr(w, fmt.Errorf("%w: not your product", market.ErrForbidden))
		return
	}
	counts, err := h.Repo.CountItems(ctx, productID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *CatalogHandler) disableItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	callerID, isAdmin := caller(r)

	ctx, cancel := context3s(r)
	defer cancel()

	if err := h.Repo.DisableItem(ctx, itemID, callerID, isAdmin); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}
