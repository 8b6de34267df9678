package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("items required"), http.StatusBadRequest},
		{Unauthorized("bad signature"), http.StatusUnauthorized},
		{Forbidden("admin only"), http.StatusForbidden},
		{NotFound("order %s not found", "o1"), http.StatusNotFound},
		{Conflict("order not pending"), http.StatusConflict},
		{Provider("xendit: invalid api key"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("checkout: %w", &InsufficientStockError{ProductID: "p1", Need: 2, Avail: 1}), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", NotFound("address not found")), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestMessageHidesInternal(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "order not pending", Message(Conflict("order not pending")))
	assert.Equal(t, "db down: dial tcp", Wrap(KindInternal, errors.New("dial tcp"), "db down").Error())
}
