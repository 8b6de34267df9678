package address

import (
	"context"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const columns = `id, user_id, label, recipient_name, phone, address, city, postal_code, is_default, created_at, updated_at`

func scan(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.RecipientName, &a.Phone, &a.Address,
		&a.City, &a.PostalCode, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repo) List(ctx context.Context, userID string) ([]Address, error) {
	return list(ctx, r.DB, userID)
}

func list(ctx context.Context, q postgres.DBTX, userID string) ([]Address, error) {
	rows, err := q.Query(ctx, `SELECT `+columns+` FROM addresses
		WHERE user_id=$1 ORDER BY is_default DESC, created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Address{}
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get selalu owner-scoped: alamat milik user lain dianggap tidak ada.
func (r *Repo) Get(ctx context.Context, q postgres.DBTX, userID, id string) (Address, error) {
	a, err := scan(q.QueryRow(ctx, `SELECT `+columns+` FROM addresses WHERE id=$1 AND user_id=$2`, id, userID))
	if postgres.IsNoRows(err) {
		return Address{}, apperr.NotFound("address %s not found", id)
	}
	return a, err
}

// lockUser serialisasi semua mutasi alamat per user (termasuk saat user belum punya alamat).
func lockUser(ctx context.Context, tx pgx.Tx, userID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&id)
	if postgres.IsNoRows(err) {
		return apperr.NotFound("user %s not found", userID)
	}
	return err
}

func (r *Repo) Create(ctx context.Context, userID string, in Input) (Address, error) {
	var out Address
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		var err error
		out, err = r.CreateTx(ctx, tx, userID, in)
		return err
	})
	return out, err
}

// CreateTx: alamat pertama user otomatis jadi default.
func (r *Repo) CreateTx(ctx context.Context, tx pgx.Tx, userID string, in Input) (Address, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Address{}, err
	}
	if err := lockUser(ctx, tx, userID); err != nil {
		return Address{}, err
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM addresses WHERE user_id=$1`, userID).Scan(&n); err != nil {
		return Address{}, err
	}
	makeDefault := n == 0 || in.IsDefault
	if makeDefault && n > 0 {
		if err := clearDefault(ctx, tx, userID); err != nil {
			return Address{}, err
		}
	}

	return scan(tx.QueryRow(ctx, `
		INSERT INTO addresses(id, user_id, label, recipient_name, phone, address, city, postal_code, is_default)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+columns,
		uuid.NewString(), userID, in.Label, in.RecipientName, in.Phone, in.Address, in.City, in.PostalCode, makeDefault))
}

// Update: is_default=true memindahkan default ke alamat ini. Melepas default dari satu-satunya
// default diabaikan, karena user yang punya alamat wajib punya tepat satu default.
func (r *Repo) Update(ctx context.Context, userID, id string, in Input) (Address, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Address{}, err
	}
	var out Address
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := r.Get(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		isDefault := cur.IsDefault || in.IsDefault
		if in.IsDefault && !cur.IsDefault {
			if err := clearDefault(ctx, tx, userID); err != nil {
				return err
			}
		}
		out, err = scan(tx.QueryRow(ctx, `
			UPDATE addresses SET label=$3, recipient_name=$4, phone=$5, address=$6, city=$7,
				postal_code=$8, is_default=$9, updated_at=now()
			WHERE id=$1 AND user_id=$2
			RETURNING `+columns,
			id, userID, in.Label, in.RecipientName, in.Phone, in.Address, in.City, in.PostalCode, isDefault))
		return err
	})
	return out, err
}

func (r *Repo) SetDefault(ctx context.Context, userID, id string) (Address, error) {
	var out Address
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := r.Get(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if cur.IsDefault {
			out = cur
			return nil
		}
		if err := clearDefault(ctx, tx, userID); err != nil {
			return err
		}
		out, err = scan(tx.QueryRow(ctx, `
			UPDATE addresses SET is_default=true, updated_at=now() WHERE id=$1 RETURNING `+columns, id))
		return err
	})
	return out, err
}

// Delete: kalau yang dihapus adalah default dan masih ada alamat lain, alamat tertua dipromosikan.
func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	return postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := r.Get(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM addresses WHERE id=$1 AND user_id=$2`, id, userID); err != nil {
			return err
		}
		if !cur.IsDefault {
			return nil
		}

		remaining, err := list(ctx, tx, userID)
		if err != nil {
			return err
		}
		next, ok := PickPromotion(remaining)
		if !ok {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE addresses SET is_default=true, updated_at=now() WHERE id=$1`, next.ID)
		return err
	})
}

func clearDefault(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `UPDATE addresses SET is_default=false, updated_at=now() WHERE user_id=$1 AND is_default`, userID)
	return err
}
