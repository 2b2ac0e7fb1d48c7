package market

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderCompleted   = "OrderCompleted"
	EventOrderCancelled   = "OrderCancelled"
	EventPaymentConfirmed = "PaymentConfirmed"
	EventPaymentFailed    = "PaymentFailed"
	EventPaymentExpired   = "PaymentExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "market-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type LinePrice struct {
	OrderItemID   string `json:"order_item_id"`
	ProductID     string `json:"product_id"`
	ProductItemID string `json:"product_item_id"`
	PriceCents    int    `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID    string      `json:"order_id"`
	ExternalID string      `json:"external_id,omitempty"`
	BuyerID    string      `json:"buyer_id"`
	Items      []LinePrice `json:"items"`
	TotalCents int         `json:"total_cents"`
}

type OrderCompletedPayload struct {
	OrderID string `json:"order_id"`
}

type OrderCancelledPayload struct {
	OrderID     string      `json:"order_id"`
	FinalStatus OrderStatus `json:"final_status"` // cancelled | failed
	Reason      string      `json:"reason"`       // e.g., USER_CANCELLED, PAYMENT_FAILED, RESERVATION_EXPIRED
}

// PaymentEventPayload dipakai ketiga event dari payment gateway.
type PaymentEventPayload struct {
	OrderID     string `json:"order_id"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	AmountCents int    `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"` // diisi hanya untuk failed
}
