package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeErr(w http.ResponseWriter, err error) { w.WriteHeader(apperr.HTTPStatus(err)) }

func TestTokensRoundTrip(t *testing.T) {
	tok := &Tokens{Secret: []byte("s3cret"), TTL: time.Hour}
	raw, exp, err := tok.Issue(Principal{UserID: "u1", Email: "u1@beras.id", Role: RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	p, err := tok.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u1", Email: "u1@beras.id", Role: RoleAdmin}, p)

	_, err = (&Tokens{Secret: []byte("other")}).Parse(raw)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	expired := &Tokens{Secret: []byte("s3cret"), TTL: time.Hour, Now: func() time.Time { return time.Now().Add(2 * time.Hour) }}
	_, err = expired.Parse(raw)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestMiddleware(t *testing.T) {
	tok := &Tokens{Secret: []byte("s3cret"), TTL: time.Hour}
	customer, _, _ := tok.Issue(Principal{UserID: "u1", Role: RoleCustomer})
	admin, _, _ := tok.Issue(Principal{UserID: "u2", Role: RoleAdmin})

	var seen Principal
	h := Required(tok, writeErr)(RoleRequired(writeErr, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(mod func(r *http.Request)) int {
		r := httptest.NewRequest(http.MethodGet, "/admin", nil)
		mod(r)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(func(r *http.Request) {}))
	assert.Equal(t, http.StatusUnauthorized, do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") }))
	assert.Equal(t, http.StatusForbidden, do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+customer) }))
	assert.Equal(t, http.StatusNoContent, do(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: admin})
	}))
	assert.Equal(t, "u2", seen.UserID)
}
