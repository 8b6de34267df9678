package payment

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/postgres/pgtest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	got     PaymentRequest
	err     error
	calls   int
	created int
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) CreatePayment(_ context.Context, req PaymentRequest) (PaymentResult, error) {
	g.calls++
	g.got = req
	if g.err != nil {
		return PaymentResult{}, g.err
	}
	g.created++
	return PaymentResult{
		PaymentURL:  fmt.Sprintf("https://pay.example/inv_%d", g.created),
		ExternalRef: fmt.Sprintf("INV-%d", g.created),
		ProviderRef: fmt.Sprintf("inv_%d", g.created),
		Status:      "PENDING",
	}, nil
}

func (g *stubGateway) VerifyCallback(http.Header, []byte) (Notification, error) {
	return Notification{}, nil
}

func seedPaymentOrders(t *testing.T) *pgxpool.Pool {
	db := pgtest.Open(t)
	pgtest.SeedUser(t, db, "u1", "u1@beras.id", "customer")
	pgtest.SeedUser(t, db, "u2", "u2@beras.id", "customer")
	pgtest.SeedProduct(t, db, "P1", 50000, 5)
	ctx := context.Background()
	_, err := db.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, subtotal_cents, shipping_cost_cents, total_cents, customer_name, customer_email, payment_method)
		VALUES ('o1','u1','pending',100000,15000,115000,'Budi','u1@beras.id','stub'),
		       ('o2','u1','processing',100000,0,100000,'Budi','u1@beras.id','stub'),
		       ('o3','u1','pending',100000,0,100000,'Budi','u1@beras.id','doku')`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `
		INSERT INTO order_items(order_id, product_id, product_name, qty, price_cents)
		VALUES ('o1','P1','Beras',2,50000), ('o3','P1','Beras',2,50000)`)
	require.NoError(t, err)
	return db
}

func TestServiceCreate(t *testing.T) {
	db := seedPaymentOrders(t)
	ctx := context.Background()

	gw := &stubGateway{}
	s := &Service{DB: db, Orders: &orders.Repo{DB: db}, Gateways: NewRegistry(gw), Producer: "test"}
	in := CreateInput{UserID: "u1", Provider: "stub", OrderID: "o1", BaseURL: "https://beras.id"}

	// gagal di provider: order tidak tersentuh
	gw.err = apperr.Provider("amount too small")
	_, err := s.Create(ctx, in)
	assert.True(t, apperr.Is(err, apperr.KindProvider))
	o, err := s.Orders.Get(ctx, db, "o1")
	require.NoError(t, err)
	assert.Empty(t, o.Payment.InvoiceNumber)
	assert.Equal(t, 0, pgtest.Count(t, db, "outbox"))

	gw.err = nil
	res, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", res.ExternalRef)
	assert.Equal(t, "Budi", gw.got.Customer.Name)
	require.Len(t, gw.got.Items, 1)
	assert.Equal(t, int64(50000), gw.got.Items[0].PriceCents)

	o, err = s.Orders.Get(ctx, db, "o1")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", o.Payment.InvoiceNumber)
	assert.Equal(t, "inv_1", o.Payment.ProviderReference)
	assert.Equal(t, "PENDING", o.Payment.Status)
	assert.Equal(t, 1, pgtest.Count(t, db, "outbox"))

	_, err = s.Create(ctx, CreateInput{UserID: "u2", Provider: "stub", OrderID: "o1"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = s.Create(ctx, CreateInput{UserID: "u1", Provider: "stub", OrderID: "o2"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = s.Create(ctx, CreateInput{UserID: "u1", Provider: "paypal", OrderID: "o1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestServiceCreateRejectsOtherMethod(t *testing.T) {
	db := seedPaymentOrders(t)
	ctx := context.Background()
	gw := &stubGateway{}
	s := &Service{DB: db, Orders: &orders.Repo{DB: db}, Gateways: NewRegistry(gw), Producer: "test"}

	// o3 di-checkout dengan doku, tidak boleh dibayar lewat gateway lain
	_, err := s.Create(ctx, CreateInput{UserID: "u1", Provider: "stub", OrderID: "o3"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 0, gw.calls)

	o, err := s.Orders.Get(ctx, db, "o3")
	require.NoError(t, err)
	assert.Equal(t, "doku", o.Payment.Method)
	assert.Empty(t, o.Payment.InvoiceNumber)
	assert.Equal(t, 0, pgtest.Count(t, db, "outbox"))
}

func TestServiceCreateReusesLiveInvoice(t *testing.T) {
	db := seedPaymentOrders(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	gw := &stubGateway{}
	s := &Service{
		DB: db, Orders: &orders.Repo{DB: db}, Gateways: NewRegistry(gw), Producer: "test",
		Now: func() time.Time { return now },
	}
	in := CreateInput{UserID: "u1", Provider: "stub", OrderID: "o1"}

	first, err := s.Create(ctx, in)
	require.NoError(t, err)
	again, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.calls, "a live invoice is returned without calling the provider")
	assert.Equal(t, first.ExternalRef, again.ExternalRef)
	assert.Equal(t, first.PaymentURL, again.PaymentURL)
	assert.Equal(t, 1, pgtest.Count(t, db, "outbox"))

	_, err = db.Exec(ctx, `UPDATE orders SET payment_expired_at = $1 WHERE id = 'o1'`, now.Add(-time.Minute))
	require.NoError(t, err)
	fresh, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.calls)
	assert.Equal(t, "INV-2", fresh.ExternalRef)

	o, err := s.Orders.Get(ctx, db, "o1")
	require.NoError(t, err)
	assert.Equal(t, "INV-2", o.Payment.InvoiceNumber)
	assert.Equal(t, 2, pgtest.Count(t, db, "outbox"))
}
