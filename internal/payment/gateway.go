package payment

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
)

// Gateway: satu implementasi per provider, dipilih dari payment_method order.
type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResult, error)
	// VerifyCallback memvalidasi notifikasi masuk (token/signature) lalu mem-parse body-nya.
	VerifyCallback(h http.Header, body []byte) (Notification, error)
}

type Customer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal"`
}

type LineItem struct {
	ID         string
	Name       string
	Qty        int
	PriceCents int64
}

type PaymentRequest struct {
	Order    orders.Order
	Customer Customer
	Items    []LineItem
	BaseURL  string
}

type PaymentResult struct {
	PaymentURL  string     `json:"payment_url"`
	ExternalRef string     `json:"external_id"`
	ProviderRef string     `json:"provider_reference,omitempty"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expiry,omitempty"`
}

// Notification: bentuk netral dari callback provider.
type Notification struct {
	ExternalRef  string
	ProviderRef  string
	Status       string
	ChannelLabel string
	Code         string
	PaidAmount   int64 // whole units
	At           time.Time
}

type Registry struct {
	byName map[string]Gateway
}

func NewRegistry(gs ...Gateway) *Registry {
	r := &Registry{byName: make(map[string]Gateway, len(gs))}
	for _, g := range gs {
		r.byName[g.Name()] = g
	}
	return r
}

func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperr.Validation("unsupported payment method %q", name)
	}
	return g, nil
}

func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
