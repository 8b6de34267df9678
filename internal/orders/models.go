package orders

import "time"

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Order struct {
	ID                string     `json:"id"`
	UserID            *string    `json:"user_id,omitempty"` // nullable, guest order
	Status            Status     `json:"status"`
	SubtotalCents     int64      `json:"subtotal_cents"`
	ShippingCostCents int64      `json:"shipping_cost_cents"`
	TotalCents        int64      `json:"total_cents"`
	CustomerName      string     `json:"customer_name,omitempty"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	CustomerPhone     string     `json:"customer_phone,omitempty"`
	ShippingAddressID *string    `json:"shipping_address_id,omitempty"`
	Payment           Payment    `json:"payment"`
	StockReleasedAt   *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Payment: metadata pembayaran di header order.
// InvoiceNumber = external reference buatan kita, ProviderReference = id invoice milik provider.
type Payment struct {
	Method            string     `json:"method,omitempty"`
	InvoiceNumber     string     `json:"invoice_number,omitempty"`
	ProviderReference string     `json:"provider_reference,omitempty"`
	ChannelLabel      string     `json:"channel,omitempty"`
	URL               string     `json:"url,omitempty"`
	Status            string     `json:"status,omitempty"`
	Code              string     `json:"code,omitempty"`
	ExpiredAt         *time.Time `json:"expired_at,omitempty"`
	StatusDate        *time.Time `json:"status_date,omitempty"`
}

type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
}

func (it OrderItem) LineTotal() int64 { return it.PriceCents * int64(it.Qty) }

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

func (o Order) OwnedBy(userID string) bool {
	return o.UserID != nil && *o.UserID == userID
}

func (o Order) Owner() string {
	if o.UserID == nil {
		return ""
	}
	return *o.UserID
}
