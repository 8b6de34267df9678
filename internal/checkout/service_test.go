package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/ariefcatur/beras-storefront/internal/address"
	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/postgres/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlyXendit(m string) bool { return m == "xendit" }

func TestValidate(t *testing.T) {
	base := Input{
		UserID:        "u1",
		Items:         []ItemInput{{ProductID: "p2", Qty: 1}, {ProductID: "p1", Qty: 2}, {ProductID: "p2", Qty: 3}},
		PaymentMethod: " Xendit ",
		AddressID:     "a1",
	}
	in, err := Validate(base, onlyXendit)
	require.NoError(t, err)
	assert.Equal(t, "xendit", in.PaymentMethod)
	assert.Equal(t, []ItemInput{{ProductID: "p1", Qty: 2}, {ProductID: "p2", Qty: 4}}, in.Items)

	cases := []struct {
		name string
		mod  func(*Input)
		kind apperr.Kind
	}{
		{"no session", func(in *Input) { in.UserID = "" }, apperr.KindUnauthorized},
		{"empty items", func(in *Input) { in.Items = nil }, apperr.KindValidation},
		{"zero qty", func(in *Input) { in.Items = []ItemInput{{ProductID: "p1", Qty: 0}} }, apperr.KindValidation},
		{"missing product id", func(in *Input) { in.Items = []ItemInput{{Qty: 1}} }, apperr.KindValidation},
		{"unknown provider", func(in *Input) { in.PaymentMethod = "midtrans" }, apperr.KindValidation},
		{"negative shipping", func(in *Input) { in.ShippingCostCents = -1 }, apperr.KindValidation},
		{"no address", func(in *Input) { in.AddressID = "" }, apperr.KindValidation},
		{"customer info without name", func(in *Input) {
			in.AddressID = ""
			in.CustomerInfo = &CustomerInfo{Address: "Jl. A"}
		}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			in.Items = append([]ItemInput(nil), base.Items...)
			tc.mod(&in)
			_, err := Validate(in, onlyXendit)
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestPriceItems(t *testing.T) {
	products := map[string]orders.Product{
		"p1": {ID: "p1", Name: "Beras Rojolele 5kg", PriceCents: 50000, Stock: 5},
		"p2": {ID: "p2", Name: "Beras Merah 1kg", PriceCents: 12000, Stock: 1},
	}

	items, subtotal, err := PriceItems("o1", []ItemInput{{ProductID: "p1", Qty: 2}, {ProductID: "p2", Qty: 1}}, products)
	require.NoError(t, err)
	assert.Equal(t, int64(112000), subtotal)
	assert.Equal(t, "Beras Rojolele 5kg", items[0].ProductName)
	assert.Equal(t, "o1", items[1].OrderID)

	_, _, err = PriceItems("o1", []ItemInput{{ProductID: "nope", Qty: 1}}, products)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = PriceItems("o1", []ItemInput{{ProductID: "p2", Qty: 2}}, products)
	var ise *apperr.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 1, ise.Avail)
}

func newService(t *testing.T) *Service {
	db := pgtest.Open(t)
	pgtest.SeedUser(t, db, "u1", "u1@beras.id", "customer")
	pgtest.SeedUser(t, db, "u2", "u2@beras.id", "customer")
	return &Service{
		DB:              db,
		Orders:          &orders.Repo{DB: db},
		Addresses:       &address.Repo{DB: db},
		IsPaymentMethod: onlyXendit,
		Producer:        "test",
	}
}

func checkoutInput(user string, qty int) Input {
	return Input{
		UserID:            user,
		Items:             []ItemInput{{ProductID: "P1", Qty: qty}},
		PaymentMethod:     "xendit",
		ShippingCostCents: 15000,
		CustomerInfo:      &CustomerInfo{Name: "Siti", Email: "siti@beras.id", Address: "Jl. Merdeka 1", City: "Bandung"},
	}
}

func TestCheckoutCreatesOrder(t *testing.T) {
	s := newService(t)
	pgtest.SeedProduct(t, s.DB, "P1", 50000, 5)
	ctx := context.Background()

	res, err := s.Checkout(ctx, checkoutInput("u1", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(115000), res.Order.TotalCents)
	assert.Equal(t, int64(100000), res.Order.SubtotalCents)
	assert.Equal(t, orders.StatusPending, res.Order.Status)
	assert.Equal(t, 3, pgtest.Stock(t, s.DB, "P1"))
	assert.True(t, res.Address.IsDefault, "first address becomes default")

	var sum int64
	items, err := s.Orders.Items(ctx, s.DB, res.Order.ID)
	require.NoError(t, err)
	for _, it := range items {
		sum += it.LineTotal()
	}
	assert.Equal(t, res.Order.TotalCents, sum+res.Order.ShippingCostCents)
	assert.Equal(t, 1, pgtest.Count(t, s.DB, "outbox"))

	// checkout kedua pakai address_id tersimpan
	in := checkoutInput("u1", 1)
	in.CustomerInfo = nil
	in.AddressID = res.Address.ID
	res2, err := s.Checkout(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, res.Address.ID, res2.Address.ID)
	assert.Equal(t, "u1@beras.id", res2.Order.CustomerEmail)
	assert.Equal(t, 1, pgtest.Count(t, s.DB, "addresses"))
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	s := newService(t)
	pgtest.SeedProduct(t, s.DB, "P1", 50000, 1)

	_, err := s.Checkout(context.Background(), checkoutInput("u1", 2))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, pgtest.Stock(t, s.DB, "P1"))
	assert.Equal(t, 0, pgtest.Count(t, s.DB, "orders"))
	assert.Equal(t, 0, pgtest.Count(t, s.DB, "addresses"))
	assert.Equal(t, 0, pgtest.Count(t, s.DB, "outbox"))
}

func TestCheckoutForeignAddressRollsBack(t *testing.T) {
	s := newService(t)
	pgtest.SeedProduct(t, s.DB, "P1", 50000, 5)
	ctx := context.Background()

	res, err := s.Checkout(ctx, checkoutInput("u2", 1))
	require.NoError(t, err)

	in := checkoutInput("u1", 1)
	in.CustomerInfo = nil
	in.AddressID = res.Address.ID
	_, err = s.Checkout(ctx, in)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 4, pgtest.Stock(t, s.DB, "P1"))
	assert.Equal(t, 1, pgtest.Count(t, s.DB, "orders"))
}

func TestCheckoutConcurrentLastUnit(t *testing.T) {
	s := newService(t)
	pgtest.SeedProduct(t, s.DB, "P1", 50000, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = s.Checkout(context.Background(), checkoutInput(user, 1))
		}(i, user)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.KindConflict):
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)
	assert.Equal(t, 0, pgtest.Stock(t, s.DB, "P1"))
	assert.Equal(t, 1, pgtest.Count(t, s.DB, "orders"))
}
