package address

import (
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
)

type Address struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Label         string    `json:"label,omitempty"`
	RecipientName string    `json:"recipient_name"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address"`
	City          string    `json:"city,omitempty"`
	PostalCode    string    `json:"postal_code,omitempty"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Input dipakai untuk create/update; juga dipakai checkout dari customer_info.
type Input struct {
	Label         string `json:"label"`
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	IsDefault     bool   `json:"is_default"`
}

func (in *Input) Normalize() {
	in.Label = strings.TrimSpace(in.Label)
	in.RecipientName = strings.TrimSpace(in.RecipientName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
}

func (in Input) Validate() error {
	if in.RecipientName == "" {
		return apperr.Validation("recipient_name is required")
	}
	if in.Address == "" {
		return apperr.Validation("address is required")
	}
	return nil
}

// PickPromotion memilih alamat yang jadi default setelah default lama dihapus:
// paling lama (created_at), tie-break id.
func PickPromotion(remaining []Address) (Address, bool) {
	if len(remaining) == 0 {
		return Address{}, false
	}
	best := remaining[0]
	for _, a := range remaining[1:] {
		if a.CreatedAt.Before(best.CreatedAt) || (a.CreatedAt.Equal(best.CreatedAt) && a.ID < best.ID) {
			best = a
		}
	}
	return best, true
}
