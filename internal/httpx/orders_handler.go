package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	kafkax "github.com/ariefcatur/go-digital-market.git/internal/kafka"
	"github.com/ariefcatur/go-digital-market.git/internal/market"
	"github.com/ariefcatur/go-digital-market.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type OrdersHandler struct {
	Orders *market.OrderRepo
	Engine *market.FulfillmentRepo
	Redis  *redis.Client

	ProducerCreated   *kafkax.Producer // order.created
	ProducerCompleted *kafkax.Producer // order.completed (fulfill manual bisa menuntaskan order)
	ProducerCancelled *kafkax.Producer // order.cancelled

	Service string
}

type CheckoutReq struct {
	ExternalID string `json:"external_id,omitempty"`
}

type FulfillReq struct {
	Payload string `json:"payload,omitempty"` // kosong = pakai data unit tersimpan
}

type RefundReq struct {
	Notes string `json:"notes"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/order-items/{id}/fulfill", h.fulfillItem)
	r.Post("/order-items/{id}/refund", h.refundItem)
}

// checkout = createOrder(buyerId): cart buyer dialokasikan jadi Order +
// OrderItems dalam satu transaksi di repo.
func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	buyerID, _ := caller(r)
	if buyerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing X-User-Id"})
		return
	}
	var req CheckoutReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // body opsional
	}

	ctx, cancel := context5s(r)
	defer cancel()

	// Fast-path idempotency via Redis (DB tetap jadi kebenaran: repo juga
	// cek external_id sebelum alokasi)
	if req.ExternalID != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.ExternalID)
		if ok, _ := redisx.Exists(ctx, h.Redis, idemKey); ok {
			if orderID, err := h.Redis.Get(ctx, idemKey).Result(); err == nil {
				o, items, gerr := h.Orders.GetOrder(ctx, orderID)
				if gerr == nil {
					writeJSON(w, http.StatusOK, toOrderResp(o, items))
					return
				}
			}
		}
	}

	o, items, existed, err := h.Orders.CreateOrder(ctx, buyerID, req.ExternalID)
	if err != nil {
		writeErr(w, err)
		return
	}

	if req.ExternalID != "" {
		_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, req.ExternalID), o.ID, redisx.TTLIdempotency).Err()
	}
	h.cacheStatus(ctx, o.ID, o.Status, o.PaymentStatus)

	if existed {
		writeJSON(w, http.StatusOK, toOrderResp(o, items))
		return
	}

	lines := make([]market.LinePrice, 0, len(items))
	for _, it := range items {
		lines = append(lines, market.LinePrice{
			OrderItemID: it.ID, ProductID: it.ProductID, ProductItemID: it.ProductItemID, PriceCents: it.PriceCents,
		})
	}
	h.publish(h.ProducerCreated, market.EventOrderCreated, o.ID, r.Header.Get("X-Request-Id"),
		market.OrderCreatedPayload{
			OrderID: o.ID, ExternalID: o.ExternalID, BuyerID: o.BuyerID, Items: lines, TotalCents: o.TotalCents,
		})

	writeJSON(w, http.StatusCreated, toOrderResp(o, items))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context3s(r)
	defer cancel()

	o, items, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	callerID, isAdmin := caller(r)
	if !isAdmin && o.BuyerID != callerID {
		writeErr(w, fmt.Errorf("%w: not your order", market.ErrForbidden))
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, items))
}

// getOrderStatus: cache-first, fallback DB, isi ulang cache.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context3s(r)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	st, ps, err := h.Orders.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	b, _ := json.Marshal(map[string]any{"status": st, "payment_status": ps})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	callerID, isAdmin := caller(r)

	ctx, cancel := context5s(r)
	defer cancel()

	o, err := h.Engine.CancelOrder(ctx, orderID, callerID, isAdmin)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, o.ID, o.Status, o.PaymentStatus)
	h.publish(h.ProducerCancelled, market.EventOrderCancelled, o.ID, r.Header.Get("X-Request-Id"),
		market.OrderCancelledPayload{OrderID: o.ID, FinalStatus: o.Status, Reason: "USER_CANCELLED"})

	writeJSON(w, http.StatusOK, toOrderResp(o, nil))
}

func (h *OrdersHandler) fulfillItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	callerID, isAdmin := caller(r)

	var req FulfillReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	it, completed, err := h.Engine.FulfillItem(ctx, itemID, callerID, isAdmin, req.Payload)
	if err != nil {
		writeErr(w, err)
		return
	}

	if completed {
		h.cacheStatus(ctx, it.OrderID, market.OrderCompleted, market.PaymentPaid)
		h.publish(h.ProducerCompleted, market.EventOrderCompleted, it.OrderID, r.Header.Get("X-Request-Id"),
			market.OrderCompletedPayload{OrderID: it.OrderID})
	}
	writeJSON(w, http.StatusOK, toOrderItemResp(it))
}

func (h *OrdersHandler) refundItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	callerID, isAdmin := caller(r)

	var req RefundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	it, err := h.Engine.RefundItem(ctx, itemID, callerID, isAdmin, req.Notes)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderItemResp(it))
}

func (h *OrdersHandler) publish(p *kafkax.Producer, eventType, orderID, trace string, payload any) {
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(market.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, st market.OrderStatus, ps market.PaymentStatus) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b, _ := json.Marshal(map[string]any{"status": st, "payment_status": ps})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
