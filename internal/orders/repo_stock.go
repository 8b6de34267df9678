package orders

import (
	"context"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// LoadProducts: satu query untuk semua product id (snapshot harga + stok yang konsisten).
func (r *Repo) LoadProducts(ctx context.Context, q postgres.DBTX, ids []string) (map[string]Product, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sku, name, stock, price_cents, created_at, updated_at
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// DecrementStock: kurangi stok secara atomik. Tidak ada read-then-write, jadi dua checkout
// yang balapan di product yang sama tidak bisa bikin stok minus.
func (r *Repo) DecrementStock(ctx context.Context, q postgres.DBTX, productID string, qty int) error {
	ct, err := q.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var avail int
	if err := q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&avail); err != nil {
		if postgres.IsNoRows(err) {
			return apperr.NotFound("product %s not found", productID)
		}
		return err
	}
	return &apperr.InsufficientStockError{ProductID: productID, Need: qty, Avail: avail}
}

// RestockOrder mengembalikan stok semua item order yang sudah cancelled.
// Guard stock_released_at bikin ini aman dipanggil berkali-kali (event dobel dsb).
func (r *Repo) RestockOrder(ctx context.Context, orderID string) (released bool, err error) {
	err = postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE orders SET stock_released_at = now(), updated_at = now()
			WHERE id=$1 AND status='cancelled' AND stock_released_at IS NULL`, orderID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return nil
		}

		items, err := r.Items(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
		released = true
		return nil
	})
	return released, err
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, stock, price_cents, created_at, updated_at
                                FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetStock: koreksi stok manual oleh admin (nilai absolut).
func (r *Repo) SetStock(ctx context.Context, productID string, stock int) (Product, error) {
	if stock < 0 {
		return Product{}, apperr.Validation("stock must be >= 0")
	}
	var p Product
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock=$2, updated_at=now() WHERE id=$1
		RETURNING id, sku, name, stock, price_cents, created_at, updated_at`, productID, stock,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt)
	if postgres.IsNoRows(err) {
		return Product{}, apperr.NotFound("product %s not found", productID)
	}
	return p, err
}
