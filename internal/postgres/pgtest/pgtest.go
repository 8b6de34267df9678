// Package pgtest membuka database test. Test di-skip kalau TEST_POSTGRES_DSN kosong.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, postgres.Migrate(ctx, db))
	_, err = db.Exec(ctx, `TRUNCATE outbox, order_items, orders, addresses, products, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func SeedUser(t *testing.T, db *pgxpool.Pool, id, email, role string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO users(id, email, name, password_hash, role) VALUES ($1,$2,$3,'x',$4)`,
		id, email, "User "+id, role)
	require.NoError(t, err)
}

func SeedProduct(t *testing.T, db *pgxpool.Pool, id string, priceCents int64, stock int) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO products(id, sku, name, price_cents, stock) VALUES ($1,$2,$3,$4,$5)`,
		id, "SKU-"+id, "Beras "+id, priceCents, stock)
	require.NoError(t, err)
}

func Stock(t *testing.T, db *pgxpool.Pool, id string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, id).Scan(&n))
	return n
}

func Count(t *testing.T, db *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT count(*) FROM `+table).Scan(&n))
	return n
}
