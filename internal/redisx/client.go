package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// New: client untuk idempotency, cache status order, dan dedup event.
// Redis di sini selalu best-effort; DB yang jadi kebenaran.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}
