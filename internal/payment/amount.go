package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ToWholeUnits: sistem simpan sen, provider minta rupiah utuh (dibulatkan).
func ToWholeUnits(cents int64) int64 {
	return decimal.New(cents, -2).Round(0).IntPart()
}

// ExternalReference unik per percobaan bayar: prefix + 8 char pertama order id + unix millis.
func ExternalReference(prefix, orderID string, now time.Time) string {
	short := strings.ReplaceAll(orderID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s-%d", prefix, strings.ToUpper(short), now.UnixMilli())
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitName: "Siti Nur Aisyah" -> ("Siti", "Nur Aisyah").
func splitName(full string) (given, surname string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
