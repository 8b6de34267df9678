package auth

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type Users struct {
	DB *pgxpool.Pool
}

const minPasswordLen = 8

// Register selalu membuat role customer. Admin dibuat lewat seed/DB.
func (u *Users) Register(ctx context.Context, in RegisterInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, apperr.Validation("valid email is required")
	}
	if name == "" {
		return User{}, apperr.Validation("name is required")
	}
	if len(in.Password) < minPasswordLen {
		return User{}, apperr.Validation("password must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	out := User{ID: uuid.NewString(), Email: email, Name: name, Phone: strings.TrimSpace(in.Phone), Role: RoleCustomer}
	err = u.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, name, phone, password_hash, role)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		out.ID, out.Email, out.Name, out.Phone, string(hash), out.Role,
	).Scan(&out.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return User{}, apperr.Conflict("email already registered")
	}
	return out, err
}

// Authenticate: email tidak ada dan password salah sama-sama 401 dengan pesan yang sama.
func (u *Users) Authenticate(ctx context.Context, email, password string) (User, error) {
	var out User
	var hash string
	err := u.DB.QueryRow(ctx, `
		SELECT id, email, name, phone, role, created_at, password_hash FROM users WHERE email=$1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&out.ID, &out.Email, &out.Name, &out.Phone, &out.Role, &out.CreatedAt, &hash)
	if postgres.IsNoRows(err) {
		return User{}, apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, apperr.Unauthorized("invalid email or password")
	}
	return out, nil
}
