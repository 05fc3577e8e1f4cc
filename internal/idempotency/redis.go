// Package idempotency provides a Redis-backed guard that lets the first of
// several concurrent attempts on the same key through.
package idempotency

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rental:idempotency:"

type cmdable interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Guard marks keys in Redis with a TTL.
type Guard struct {
	store cmdable
	scope string
	ttl   time.Duration
}

// NewClient parses a redis:// URL or plain host:port address.
func NewClient(addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	return redis.NewClient(opts), nil
}

// NewGuard returns a guard namespacing its keys under scope.
func NewGuard(client *redis.Client, scope string, ttl time.Duration) (*Guard, error) {
	return newGuard(client, scope, ttl)
}

func newGuard(store cmdable, scope string, ttl time.Duration) (*Guard, error) {
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, scope: scope, ttl: ttl}, nil
}

// Key returns the Redis key used for id.
func (g *Guard) Key(id string) string {
	return keyPrefix + g.scope + ":" + id
}

// Acquire returns true when id was not marked yet, marking it.
func (g *Guard) Acquire(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("idempotency id is required")
	}
	ok, err := g.store.SetNX(ctx, g.Key(id), "1", g.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "set idempotency key")
	}
	return ok, nil
}

// Release removes the mark so that id can be retried.
func (g *Guard) Release(ctx context.Context, id string) error {
	if err := g.store.Del(ctx, g.Key(id)).Err(); err != nil {
		return errors.Wrap(err, "delete idempotency key")
	}
	return nil
}

// Ping checks connectivity.
func (g *Guard) Ping(ctx context.Context) error {
	return g.store.Ping(ctx).Err()
}
