package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToWholeUnits(t *testing.T) {
	assert.Equal(t, int64(1150), ToWholeUnits(115000))
	assert.Equal(t, int64(1), ToWholeUnits(50))
	assert.Equal(t, int64(0), ToWholeUnits(49))
	assert.Equal(t, int64(100), ToWholeUnits(9999))
	assert.Equal(t, int64(0), ToWholeUnits(0))
}

func TestExternalReference(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	ref := ExternalReference("INV", "3f2a9c1e-77aa-4b0c-9d1e-000000000000", now)
	assert.Equal(t, "INV-3F2A9C1E-1700000000123", ref)

	assert.Equal(t, "DOKU-AB-1700000000123", ExternalReference("DOKU", "ab", now))
	assert.NotEqual(t, ref, ExternalReference("INV", "3f2a9c1e-77aa-4b0c-9d1e-000000000000", now.Add(time.Millisecond)))
}

func TestSplitName(t *testing.T) {
	g, s := splitName("  Siti  Nur Aisyah ")
	assert.Equal(t, "Siti", g)
	assert.Equal(t, "Nur Aisyah", s)

	g, s = splitName("Budi")
	assert.Equal(t, "Budi", g)
	assert.Empty(t, s)
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "6281234567890", digitsOnly("+62 812-3456-7890"))
	assert.Empty(t, digitsOnly("n/a"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&Xendit{}, &Doku{})
	assert.Equal(t, []string{"doku", "xendit"}, r.Names())
	assert.True(t, r.Has(" Xendit "))

	_, err := r.Get("midtrans")
	assert.Error(t, err)
}
