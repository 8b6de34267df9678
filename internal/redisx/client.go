package redisx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache membungkus operasi Redis yang dipakai API. Nil-safe: Cache{} tanpa client = no-op,
// DB tetap jadi sumber kebenaran.
type Cache struct {
	RDB *redis.Client
}

type StatusEntry struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Owner         string `json:"owner,omitempty"`
}

func (c Cache) GetStatus(ctx context.Context, orderID string) (StatusEntry, bool) {
	if c.RDB == nil {
		return StatusEntry{}, false
	}
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil {
		return StatusEntry{}, false
	}
	var e StatusEntry
	if json.Unmarshal([]byte(s), &e) != nil {
		return StatusEntry{}, false
	}
	return e, true
}

func (c Cache) SetStatus(ctx context.Context, orderID string, e StatusEntry) {
	if c.RDB == nil {
		return
	}
	b, _ := json.Marshal(e)
	_ = c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

func (c Cache) IdempotentOrder(ctx context.Context, userID, key string) (string, bool) {
	if c.RDB == nil || key == "" {
		return "", false
	}
	id, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Result()
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (c Cache) RememberOrder(ctx context.Context, userID, key, orderID string) {
	if c.RDB == nil || key == "" {
		return
	}
	_ = c.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), orderID, TTLIdempotency).Err()
}

// FirstSeen: true kalau id ini belum pernah diproses di scope tsb (SETNX).
// Kalau Redis error, anggap belum pernah -> proses jalan, idempotensi tetap dijaga DB.
func (c Cache) FirstSeen(ctx context.Context, scope, id string) bool {
	if c.RDB == nil {
		return true
	}
	ok, err := c.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, scope, id), "1", TTLDedup).Result()
	if err != nil {
		return true
	}
	return ok
}

// Forget melepas dedup key, dipakai kalau pemrosesan gagal supaya retry provider tidak ketahan.
func (c Cache) Forget(ctx context.Context, scope, id string) {
	if c.RDB == nil {
		return
	}
	_ = c.RDB.Del(ctx, fmt.Sprintf(KeyDedup, scope, id)).Err()
}

func BodyHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
