// Package kv wraps the ephemeral key-value store used by the circuit
// breaker: TTL'd keys with atomic get/set/increment/delete, backed by Redis.
package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is a thin wrapper over a Redis client.
type Store struct {
	client *redis.Client
}

// New builds a Store from a redis:// URL (e.g. "redis://redis:6379/0"). It
// does not connect eagerly; the first operation establishes the connection.
func New(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an already-constructed redis.Client, used by tests
// that point the Store at a miniredis instance.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error { return s.client.Close() }

// Get returns the string value for key, or ErrNotFound if it is absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

// Set stores value under key with the given TTL. A zero TTL means no
// expiration.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Incr atomically increments the integer stored at key (treating a missing
// key as 0) and refreshes its TTL, returning the new value.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Delete removes one or more keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
