package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventPaymentRequested   = "PaymentRequested"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "beras-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`                  // payload spesifik
}

// ---- Payload tipe per event ----

type ItemPrice struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID       string      `json:"order_id"`
	UserID        string      `json:"user_id"`
	PaymentMethod string      `json:"payment_method"`
	Items         []ItemPrice `json:"items"`
	TotalCents    int64       `json:"total_cents"`
}

type PaymentRequestedPayload struct {
	OrderID       string     `json:"order_id"`
	Provider      string     `json:"provider"`
	InvoiceNumber string     `json:"invoice_number"`
	AmountCents   int64      `json:"amount_cents"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID       string `json:"order_id"`
	From          Status `json:"from"`
	To            Status `json:"to"`
	Source        string `json:"source"` // xendit | doku | sweeper | admin
	PaymentStatus string `json:"payment_status,omitempty"`
}

func ItemPrices(items []OrderItem) []ItemPrice {
	out := make([]ItemPrice, 0, len(items))
	for _, it := range items {
		out = append(out, ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return out
}
