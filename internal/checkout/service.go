package checkout

import (
	"context"
	"sort"
	"strings"

	"github.com/ariefcatur/beras-storefront/internal/address"
	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/outbox"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}

type CustomerInfo struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal"`
}

type Input struct {
	UserID            string
	Items             []ItemInput
	PaymentMethod     string
	ShippingCostCents int64
	AddressID         string
	CustomerInfo      *CustomerInfo
	TraceID           string
}

type Result struct {
	Order         orders.Order       `json:"order"`
	Items         []orders.OrderItem `json:"items"`
	Address       address.Address    `json:"address"`
	CustomerInfo  *CustomerInfo      `json:"customer_info,omitempty"`
	PaymentMethod string             `json:"payment_method"`
}

type Service struct {
	DB        *pgxpool.Pool
	Orders    *orders.Repo
	Addresses *address.Repo
	// IsPaymentMethod: dari payment.Registry.Has, biar checkout tidak menerima provider asing.
	IsPaymentMethod func(string) bool
	Producer        string
}

// Validate cek input sebelum menyentuh DB. Item dengan product sama digabung.
func Validate(in Input, isPaymentMethod func(string) bool) (Input, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return in, apperr.Unauthorized("login required")
	}
	if len(in.Items) == 0 {
		return in, apperr.Validation("items must not be empty")
	}
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if in.PaymentMethod == "" {
		return in, apperr.Validation("payment_method is required")
	}
	if isPaymentMethod != nil && !isPaymentMethod(in.PaymentMethod) {
		return in, apperr.Validation("unsupported payment method %q", in.PaymentMethod)
	}
	if in.ShippingCostCents < 0 {
		return in, apperr.Validation("shipping_cost_cents must be >= 0")
	}

	merged := map[string]int{}
	for _, it := range in.Items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return in, apperr.Validation("product_id is required")
		}
		if it.Qty <= 0 {
			return in, apperr.Validation("quantity for product %s must be > 0", id)
		}
		merged[id] += it.Qty
	}
	items := make([]ItemInput, 0, len(merged))
	for id, qty := range merged {
		items = append(items, ItemInput{ProductID: id, Qty: qty})
	}
	// urutan tetap = urutan lock baris products tetap, menghindari deadlock antar checkout
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	in.Items = items

	in.AddressID = strings.TrimSpace(in.AddressID)
	if in.AddressID == "" {
		if in.CustomerInfo == nil || strings.TrimSpace(in.CustomerInfo.Address) == "" {
			return in, apperr.Validation("address_id or customer_info.address is required")
		}
		if strings.TrimSpace(in.CustomerInfo.Name) == "" {
			return in, apperr.Validation("customer_info.name is required")
		}
	}
	return in, nil
}

// PriceItems menghitung subtotal dari snapshot harga. Product yang tidak ada -> NotFound,
// stok snapshot kurang -> Conflict (decrement atomik tetap jadi penjaga terakhir).
func PriceItems(orderID string, items []ItemInput, products map[string]orders.Product) ([]orders.OrderItem, int64, error) {
	out := make([]orders.OrderItem, 0, len(items))
	var subtotal int64
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, 0, apperr.NotFound("product %s not found", it.ProductID)
		}
		if p.Stock < it.Qty {
			return nil, 0, &apperr.InsufficientStockError{ProductID: p.ID, Need: it.Qty, Avail: p.Stock}
		}
		line := orders.OrderItem{
			OrderID:     orderID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Qty:         it.Qty,
			PriceCents:  p.PriceCents,
		}
		subtotal += line.LineTotal()
		out = append(out, line)
	}
	return out, subtotal, nil
}

// Checkout: order + item + stok + alamat + event dalam satu transaksi. Gagal di langkah mana pun
// = rollback total, tidak ada order pending yang setengah jadi.
func (s *Service) Checkout(ctx context.Context, in Input) (Result, error) {
	in, err := Validate(in, s.IsPaymentMethod)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		ids := make([]string, 0, len(in.Items))
		for _, it := range in.Items {
			ids = append(ids, it.ProductID)
		}
		products, err := s.Orders.LoadProducts(ctx, tx, ids)
		if err != nil {
			return err
		}

		orderID := uuid.NewString()
		items, subtotal, err := PriceItems(orderID, in.Items, products)
		if err != nil {
			return err
		}

		// alamat di-resolve duluan supaya snapshot customer ikut tersimpan di header order
		addr, err := s.resolveAddress(ctx, tx, in)
		if err != nil {
			return err
		}

		uid := in.UserID
		o := orders.Order{
			ID:                orderID,
			UserID:            &uid,
			Status:            orders.StatusPending,
			SubtotalCents:     subtotal,
			ShippingCostCents: in.ShippingCostCents,
			TotalCents:        subtotal + in.ShippingCostCents,
			CustomerName:      addr.RecipientName,
			CustomerPhone:     addr.Phone,
			ShippingAddressID: &addr.ID,
			Payment:           orders.Payment{Method: in.PaymentMethod},
		}
		if in.CustomerInfo != nil {
			o.CustomerEmail = strings.TrimSpace(in.CustomerInfo.Email)
			if n := strings.TrimSpace(in.CustomerInfo.Name); n != "" {
				o.CustomerName = n
			}
			if p := strings.TrimSpace(in.CustomerInfo.Phone); p != "" {
				o.CustomerPhone = p
			}
		}
		if o.CustomerEmail == "" {
			if err := tx.QueryRow(ctx, `SELECT email FROM users WHERE id=$1`, in.UserID).Scan(&o.CustomerEmail); err != nil {
				return err
			}
		}

		if err := s.Orders.InsertOrder(ctx, tx, &o); err != nil {
			return err
		}
		if err := s.Orders.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		for _, it := range items {
			if err := s.Orders.DecrementStock(ctx, tx, it.ProductID, it.Qty); err != nil {
				return err
			}
		}

		err = outbox.Insert(ctx, tx, outbox.Event{
			Topic:    orders.TopicOrderCreated,
			Type:     orders.EventOrderCreated,
			OrderID:  o.ID,
			Producer: s.Producer,
			TraceID:  in.TraceID,
			Payload: orders.OrderCreatedPayload{
				OrderID:       o.ID,
				UserID:        in.UserID,
				PaymentMethod: in.PaymentMethod,
				Items:         orders.ItemPrices(items),
				TotalCents:    o.TotalCents,
			},
		})
		if err != nil {
			return err
		}

		res = Result{Order: o, Items: items, Address: addr, CustomerInfo: in.CustomerInfo, PaymentMethod: in.PaymentMethod}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log.Info().Str("order_id", res.Order.ID).Str("user_id", in.UserID).
		Int64("total_cents", res.Order.TotalCents).Int("items", len(res.Items)).Msg("checkout created")
	return res, nil
}

// resolveAddress: address_id milik user dipakai ulang, kalau tidak ada dibuat dari customer_info
// (alamat pertama user otomatis default).
func (s *Service) resolveAddress(ctx context.Context, tx pgx.Tx, in Input) (address.Address, error) {
	if in.AddressID != "" {
		return s.Addresses.Get(ctx, tx, in.UserID, in.AddressID)
	}
	ci := in.CustomerInfo
	return s.Addresses.CreateTx(ctx, tx, in.UserID, address.Input{
		RecipientName: ci.Name,
		Phone:         ci.Phone,
		Address:       ci.Address,
		City:          ci.City,
		PostalCode:    ci.PostalCode,
	})
}
