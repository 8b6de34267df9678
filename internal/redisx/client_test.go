package redisx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	var c Cache

	c.SetStatus(ctx, "o1", StatusEntry{Status: "pending"})
	_, ok := c.GetStatus(ctx, "o1")
	assert.False(t, ok)

	c.RememberOrder(ctx, "u1", "key-1", "o1")
	_, ok = c.IdempotentOrder(ctx, "u1", "key-1")
	assert.False(t, ok)

	assert.True(t, c.FirstSeen(ctx, "webhook", "h1"))
	assert.True(t, c.FirstSeen(ctx, "webhook", "h1"), "without redis every delivery is processed")
	c.Forget(ctx, "webhook", "h1")
}

func TestBodyHash(t *testing.T) {
	a := BodyHash([]byte("xendit"), []byte(`{"status":"PAID"}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, BodyHash([]byte("xendit"), []byte(`{"status":"PAID"}`)))
	assert.NotEqual(t, a, BodyHash([]byte("doku"), []byte(`{"status":"PAID"}`)))
	// separator mencegah tabrakan "ab"+"c" vs "a"+"bc"
	assert.NotEqual(t, BodyHash([]byte("ab"), []byte("c")), BodyHash([]byte("a"), []byte("bc")))
}
