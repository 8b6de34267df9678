package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/payment"
	"github.com/ariefcatur/beras-storefront/internal/postgres/pgtest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		current orders.Status
		raw     string
		want    orders.Status
		changed bool
	}{
		{orders.StatusPending, "PAID", orders.StatusProcessing, true},
		{orders.StatusPending, "SUCCESS", orders.StatusProcessing, true},
		{orders.StatusPending, "EXPIRED", orders.StatusCancelled, true},
		{orders.StatusPending, "FAILED", orders.StatusCancelled, true},
		{orders.StatusPending, "PENDING", orders.StatusPending, false},
		{orders.StatusProcessing, "PAID", orders.StatusProcessing, false},
		{orders.StatusCancelled, "PAID", orders.StatusCancelled, false},
		{orders.StatusDelivered, "EXPIRED", orders.StatusDelivered, false},
		{orders.StatusProcessing, "EXPIRED", orders.StatusProcessing, false},
	}
	for _, tc := range cases {
		got, changed := Decide(tc.current, tc.raw)
		assert.Equal(t, tc.want, got, "%s + %s", tc.current, tc.raw)
		assert.Equal(t, tc.changed, changed, "%s + %s", tc.current, tc.raw)
	}
}

// seedPendingOrder membuat order pending yang sudah punya referensi pembayaran.
func seedPendingOrder(t *testing.T, db *pgxpool.Pool, id, invoice, providerRef string, expiredAt *time.Time) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO orders(id, user_id, status, subtotal_cents, shipping_cost_cents, total_cents,
			payment_method, payment_invoice_number, payment_provider_reference, payment_expired_at)
		VALUES ($1,'u1','pending',100000,15000,115000,'xendit',NULLIF($2,''),NULLIF($3,''),$4)`,
		id, invoice, providerRef, expiredAt)
	require.NoError(t, err)
	_, err = db.Exec(context.Background(), `
		INSERT INTO order_items(order_id, product_id, product_name, qty, price_cents) VALUES ($1,'P1','Beras',2,50000)`, id)
	require.NoError(t, err)
}

func setup(t *testing.T) (*pgxpool.Pool, *Service) {
	db := pgtest.Open(t)
	pgtest.SeedUser(t, db, "u1", "u1@beras.id", "customer")
	pgtest.SeedProduct(t, db, "P1", 50000, 3)
	return db, &Service{DB: db, Orders: &orders.Repo{DB: db}, Producer: "test"}
}

func TestApplyPaidIsIdempotent(t *testing.T) {
	db, s := setup(t)
	seedPendingOrder(t, db, "o1", "INV-O1-1", "inv_1", nil)
	ctx := context.Background()
	n := payment.Notification{ExternalRef: "INV-O1-1", ProviderRef: "inv_1", Status: "PAID", ChannelLabel: "BCA", At: time.Now().UTC()}

	out, err := s.Apply(ctx, "xendit", n)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, orders.StatusProcessing, out.Status)

	out, err = s.Apply(ctx, "xendit", n)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, orders.StatusProcessing, out.Status)

	o, err := s.Orders.Get(ctx, db, "o1")
	require.NoError(t, err)
	assert.Equal(t, "PAID", o.Payment.Status)
	assert.Equal(t, "BCA", o.Payment.ChannelLabel)
	assert.Equal(t, 1, pgtest.Count(t, db, "outbox"), "only one status event")
}

func TestApplyLookupByProviderReference(t *testing.T) {
	db, s := setup(t)
	seedPendingOrder(t, db, "o1", "INV-O1-1", "inv_1", nil)

	out, err := s.Apply(context.Background(), "xendit", payment.Notification{ProviderRef: "inv_1", Status: "PENDING"})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, orders.StatusPending, out.Status)

	o, err := s.Orders.Get(context.Background(), db, "o1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", o.Payment.Status)
	assert.NotNil(t, o.Payment.StatusDate)
}

func TestApplyDoesNotRegressTerminal(t *testing.T) {
	db, s := setup(t)
	seedPendingOrder(t, db, "o1", "INV-O1-1", "", nil)
	ctx := context.Background()

	_, err := s.Apply(ctx, "doku", payment.Notification{ExternalRef: "INV-O1-1", Status: "EXPIRED"})
	require.NoError(t, err)

	out, err := s.Apply(ctx, "doku", payment.Notification{ExternalRef: "INV-O1-1", Status: "SUCCESS"})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, orders.StatusCancelled, out.Status)
}

func TestApplyUnknownOrder(t *testing.T) {
	_, s := setup(t)
	_, err := s.Apply(context.Background(), "xendit", payment.Notification{ExternalRef: "INV-NOPE", Status: "PAID"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSweeperCancelsExpired(t *testing.T) {
	db, s := setup(t)
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	seedPendingOrder(t, db, "expired", "INV-1", "", &past)
	seedPendingOrder(t, db, "active", "INV-2", "", &future)
	seedPendingOrder(t, db, "fresh-unpaid", "", "", nil)

	var swept int
	sw := &Sweeper{DB: db, Orders: s.Orders, UnpaidTTL: time.Hour, OnCancel: func(n int) { swept += n }}
	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, swept)

	st, err := s.Orders.GetOrderStatus(context.Background(), "expired")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, st)
	st, _ = s.Orders.GetOrderStatus(context.Background(), "active")
	assert.Equal(t, orders.StatusPending, st)
	st, _ = s.Orders.GetOrderStatus(context.Background(), "fresh-unpaid")
	assert.Equal(t, orders.StatusPending, st)

	// sweep kedua tidak menemukan apa-apa
	n, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// order tanpa pembayaran yang lewat TTL ikut dibatalkan
	sw.Now = func() time.Time { return now.Add(2 * time.Hour) }
	n, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRestockAfterCancel(t *testing.T) {
	db, s := setup(t)
	seedPendingOrder(t, db, "o1", "INV-O1-1", "", nil)
	ctx := context.Background()

	released, err := s.Orders.RestockOrder(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, released, "pending order is not restocked")

	_, err = s.Apply(ctx, "xendit", payment.Notification{ExternalRef: "INV-O1-1", Status: "EXPIRED"})
	require.NoError(t, err)

	released, err = s.Orders.RestockOrder(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 5, pgtest.Stock(t, db, "P1"))

	released, err = s.Orders.RestockOrder(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 5, pgtest.Stock(t, db, "P1"))
}

func TestSetStatusByAdmin(t *testing.T) {
	db, s := setup(t)
	seedPendingOrder(t, db, "o1", "INV-O1-1", "", nil)
	ctx := context.Background()

	out, err := s.SetStatusByAdmin(ctx, "o1", orders.StatusShipped, "req-1")
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, orders.StatusPending, out.From)

	// admin boleh mundur, di luar state machine
	out, err = s.SetStatusByAdmin(ctx, "o1", orders.StatusPending, "req-2")
	require.NoError(t, err)
	assert.True(t, out.Changed)

	out, err = s.SetStatusByAdmin(ctx, "o1", orders.StatusPending, "req-3")
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, 2, pgtest.Count(t, db, "outbox"))

	_, err = s.SetStatusByAdmin(ctx, "o1", orders.Status("lost"), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = s.SetStatusByAdmin(ctx, "nope", orders.StatusShipped, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSetStatusByAdminKeepsRestockedOrderCancelled(t *testing.T) {
	db, s := setup(t)
	seedPendingOrder(t, db, "o1", "INV-O1-1", "", nil)
	ctx := context.Background()

	_, err := s.SetStatusByAdmin(ctx, "o1", orders.StatusCancelled, "req-1")
	require.NoError(t, err)
	released, err := s.Orders.RestockOrder(ctx, "o1")
	require.NoError(t, err)
	require.True(t, released)

	for _, target := range []orders.Status{orders.StatusPending, orders.StatusProcessing} {
		_, err = s.SetStatusByAdmin(ctx, "o1", target, "req-2")
		assert.True(t, apperr.Is(err, apperr.KindConflict), target)
	}
	o, err := s.Orders.Get(ctx, db, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	assert.Equal(t, 1, pgtest.Count(t, db, "outbox"))

	// cancel ulang tetap no-op
	out, err := s.SetStatusByAdmin(ctx, "o1", orders.StatusCancelled, "req-3")
	require.NoError(t, err)
	assert.False(t, out.Changed)
}
