package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, status, subtotal_cents, shipping_cost_cents, total_cents,
	customer_name, customer_email, customer_phone, shipping_address_id,
	payment_method, COALESCE(payment_invoice_number, ''), COALESCE(payment_provider_reference, ''),
	payment_channel_label, payment_url, payment_status, payment_code,
	payment_expired_at, payment_status_date, stock_released_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &status, &o.SubtotalCents, &o.ShippingCostCents, &o.TotalCents,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.ShippingAddressID,
		&o.Payment.Method, &o.Payment.InvoiceNumber, &o.Payment.ProviderReference,
		&o.Payment.ChannelLabel, &o.Payment.URL, &o.Payment.Status, &o.Payment.Code,
		&o.Payment.ExpiredAt, &o.Payment.StatusDate, &o.StockReleasedAt, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

// InsertOrder: dipanggil di dalam tx checkout. CreatedAt/UpdatedAt diisi dari DB.
func (r *Repo) InsertOrder(ctx context.Context, q postgres.DBTX, o *Order) error {
	return q.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, status, subtotal_cents, shipping_cost_cents, total_cents,
			customer_name, customer_email, customer_phone, shipping_address_id, payment_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, string(o.Status), o.SubtotalCents, o.ShippingCostCents, o.TotalCents,
		o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.ShippingAddressID, o.Payment.Method,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *Repo) InsertItems(ctx context.Context, q postgres.DBTX, items []OrderItem) error {
	for i := range items {
		it := &items[i]
		err := q.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			it.OrderID, it.ProductID, it.ProductName, it.Qty, it.PriceCents,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, q postgres.DBTX, orderID string) (Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if postgres.IsNoRows(err) {
		return Order{}, apperr.NotFound("order %s not found", orderID)
	}
	return o, err
}

func (r *Repo) Lookup(ctx context.Context, orderID string) (Order, error) {
	return r.Get(ctx, r.DB, orderID)
}

func (r *Repo) GetForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if postgres.IsNoRows(err) {
		return Order{}, apperr.NotFound("order %s not found", orderID)
	}
	return o, err
}

// FindByPaymentRefForUpdate: cari order dari notifikasi provider. External reference diutamakan,
// provider reference jadi lookup kedua.
func (r *Repo) FindByPaymentRefForUpdate(ctx context.Context, tx pgx.Tx, externalRef, providerRef string) (Order, error) {
	if externalRef == "" && providerRef == "" {
		return Order{}, apperr.Validation("missing payment reference")
	}
	o, err := scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 <> '' AND payment_invoice_number = $1)
		   OR ($2 <> '' AND payment_provider_reference = $2)
		ORDER BY (payment_invoice_number = $1) IS TRUE DESC
		LIMIT 1
		FOR UPDATE`, externalRef, providerRef))
	if postgres.IsNoRows(err) {
		return Order{}, apperr.NotFound("order for payment %s not found", firstNonEmpty(externalRef, providerRef))
	}
	return o, err
}

func (r *Repo) Items(ctx context.Context, q postgres.DBTX, orderID string) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, qty, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) GetWithItems(ctx context.Context, orderID string) (OrderWithItems, error) {
	o, err := r.Get(ctx, r.DB, orderID)
	if err != nil {
		return OrderWithItems{}, err
	}
	items, err := r.Items(ctx, r.DB, orderID)
	if err != nil {
		return OrderWithItems{}, err
	}
	return OrderWithItems{Order: o, Items: items}, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if postgres.IsNoRows(err) {
		return "", apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

// SetPaymentCreated: satu kali write setelah provider sukses. Guard status='pending'
// supaya order yang keburu di-cancel sweeper tidak ketimpa.
func (r *Repo) SetPaymentCreated(ctx context.Context, q postgres.DBTX, orderID string, p Payment) error {
	ct, err := q.Exec(ctx, `
		UPDATE orders SET
			payment_method=$2, payment_invoice_number=$3, payment_provider_reference=NULLIF($4,''),
			payment_url=$5, payment_status=$6, payment_expired_at=$7,
			payment_status_date=now(), updated_at=now()
		WHERE id=$1 AND status='pending'`,
		orderID, p.Method, p.InvoiceNumber, p.ProviderReference, p.URL, p.Status, p.ExpiredAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.Conflict("order not pending")
	}
	return nil
}

// PaymentUpdate: hasil notifikasi provider. Field kosong tidak menimpa nilai lama.
type PaymentUpdate struct {
	Status            Status
	PaymentStatus     string
	ProviderReference string
	ChannelLabel      string
	Code              string
	StatusDate        time.Time
}

func (r *Repo) ApplyPaymentUpdate(ctx context.Context, tx pgx.Tx, orderID string, u PaymentUpdate) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET
			status=$2, payment_status=$3,
			payment_provider_reference=COALESCE(NULLIF($4,''), payment_provider_reference),
			payment_channel_label=COALESCE(NULLIF($5,''), payment_channel_label),
			payment_code=COALESCE(NULLIF($6,''), payment_code),
			payment_status_date=$7, updated_at=now()
		WHERE id=$1`,
		orderID, string(u.Status), u.PaymentStatus, u.ProviderReference, u.ChannelLabel, u.Code, u.StatusDate)
	return err
}

func (r *Repo) SetStatus(ctx context.Context, q postgres.DBTX, orderID string, s Status) error {
	ct, err := q.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, string(s))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("order %s not found", orderID)
	}
	return nil
}

// ListStalePendingForUpdate: order pending yang sudah lewat expiry pembayaran, atau yang
// tidak pernah dibuatkan pembayaran sampai unpaidBefore. SKIP LOCKED biar aman kalau worker > 1.
func (r *Repo) ListStalePendingForUpdate(ctx context.Context, tx pgx.Tx, now, unpaidBefore time.Time, limit int) ([]Order, error) {
	rows, err := tx.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status='pending'
		  AND ((payment_expired_at IS NOT NULL AND payment_expired_at < $1)
		    OR (payment_expired_at IS NULL AND created_at < $2))
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED`, now, unpaidBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
