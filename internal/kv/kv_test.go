package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client)
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestIncrFromMissingStartsAtOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Incr(ctx, "counter", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Incr(ctx, "counter", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDeleteRemovesKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, s.Set(ctx, "b", "2", time.Minute))

	require.NoError(t, s.Delete(ctx, "a", "b"))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteNoKeysIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Delete(context.Background()))
}
