package payment

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/outbox"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Service struct {
	DB       *pgxpool.Pool
	Orders   *orders.Repo
	Gateways *Registry
	Cache    redisx.Cache
	Producer string // nama service untuk envelope event
	Observe  func(provider, outcome string)
	Now      func() time.Time
}

type CreateInput struct {
	UserID   string
	Provider string
	OrderID  string
	Customer Customer
	BaseURL  string
	TraceID  string
}

type CreateResult struct {
	OrderID string `json:"order_id"`
	PaymentResult
}

// Create membuat artefak pembayaran di provider. Field pembayaran di order baru ditulis
// setelah provider sukses, jadi error provider tidak meninggalkan state setengah jadi.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	gw, err := s.Gateways.Get(in.Provider)
	if err != nil {
		return CreateResult{}, err
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return CreateResult{}, apperr.Validation("order_id is required")
	}

	o, err := s.Orders.Get(ctx, s.DB, in.OrderID)
	if err != nil {
		return CreateResult{}, err
	}
	if !o.OwnedBy(in.UserID) {
		return CreateResult{}, apperr.NotFound("order %s not found", in.OrderID)
	}
	if o.Status != orders.StatusPending {
		return CreateResult{}, apperr.Conflict("order not pending")
	}
	if o.Payment.Method != "" && o.Payment.Method != gw.Name() {
		return CreateResult{}, apperr.Conflict("order was checked out with payment method %s", o.Payment.Method)
	}
	// invoice lama masih berlaku: kembalikan yang sama, jangan buat invoice kedua
	if p := o.Payment; p.InvoiceNumber != "" && p.Method == gw.Name() && (p.ExpiredAt == nil || p.ExpiredAt.After(s.now())) {
		s.observe(gw.Name(), "reused")
		return CreateResult{OrderID: o.ID, PaymentResult: PaymentResult{
			PaymentURL:  p.URL,
			ExternalRef: p.InvoiceNumber,
			ProviderRef: p.ProviderReference,
			Status:      p.Status,
			ExpiresAt:   p.ExpiredAt,
		}}, nil
	}
	items, err := s.Orders.Items(ctx, s.DB, o.ID)
	if err != nil {
		return CreateResult{}, err
	}

	res, err := gw.CreatePayment(ctx, PaymentRequest{
		Order:    o,
		Customer: mergeCustomer(in.Customer, o),
		Items:    lineItems(items),
		BaseURL:  in.BaseURL,
	})
	if err != nil {
		s.observe(gw.Name(), "error")
		log.Warn().Err(err).Str("order_id", o.ID).Str("provider", gw.Name()).Msg("create payment failed")
		return CreateResult{}, err
	}

	pay := orders.Payment{
		Method:            gw.Name(),
		InvoiceNumber:     res.ExternalRef,
		ProviderReference: res.ProviderRef,
		URL:               res.PaymentURL,
		Status:            res.Status,
		ExpiredAt:         res.ExpiresAt,
	}
	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := s.Orders.SetPaymentCreated(ctx, tx, o.ID, pay); err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, outbox.Event{
			Topic:    orders.TopicPayment,
			Type:     orders.EventPaymentRequested,
			OrderID:  o.ID,
			Producer: s.Producer,
			TraceID:  in.TraceID,
			Payload: orders.PaymentRequestedPayload{
				OrderID:       o.ID,
				Provider:      gw.Name(),
				InvoiceNumber: res.ExternalRef,
				AmountCents:   o.TotalCents,
				ExpiresAt:     res.ExpiresAt,
			},
		})
	})
	if err != nil {
		s.observe(gw.Name(), "error")
		return CreateResult{}, err
	}

	s.observe(gw.Name(), "created")
	s.Cache.SetStatus(ctx, o.ID, redisx.StatusEntry{Status: string(o.Status), PaymentStatus: res.Status, Owner: o.Owner()})
	log.Info().Str("order_id", o.ID).Str("provider", gw.Name()).Str("external_id", res.ExternalRef).Msg("payment created")
	return CreateResult{OrderID: o.ID, PaymentResult: res}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) observe(provider, outcome string) {
	if s.Observe != nil {
		s.Observe(provider, outcome)
	}
}

// mergeCustomer: data dari request diutamakan, kosongnya diisi snapshot di order.
func mergeCustomer(c Customer, o orders.Order) Customer {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = o.CustomerName
	}
	if strings.TrimSpace(c.Email) == "" {
		c.Email = o.CustomerEmail
	}
	if strings.TrimSpace(c.Phone) == "" {
		c.Phone = o.CustomerPhone
	}
	return c
}

func lineItems(items []orders.OrderItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, LineItem{ID: it.ProductID, Name: it.ProductName, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return out
}
