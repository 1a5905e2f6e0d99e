package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-io/ridgeline/internal/kv"
)

func newTestBreaker(t *testing.T, failureThreshold int, recoveryTimeout time.Duration) (*Breaker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := kv.NewFromClient(client)
	return New(store, failureThreshold, recoveryTimeout), mr
}

func TestIsOpenClosedByDefault(t *testing.T) {
	b, _ := newTestBreaker(t, 5, time.Minute)
	open, err := b.IsOpen(context.Background(), "https://example.com/hook")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestRecordFailureTripsAtThreshold(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(t, 3, time.Minute)
	url := "https://example.com/hook"

	for i := 0; i < 2; i++ {
		tripped, err := b.RecordFailure(ctx, url)
		require.NoError(t, err)
		assert.False(t, tripped)
	}

	tripped, err := b.RecordFailure(ctx, url)
	require.NoError(t, err)
	assert.True(t, tripped)

	open, err := b.IsOpen(ctx, url)
	require.NoError(t, err)
	assert.True(t, open)
}

func TestRecordSuccessResetsFailureCounter(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(t, 3, time.Minute)
	url := "https://example.com/hook"

	_, err := b.RecordFailure(ctx, url)
	require.NoError(t, err)
	require.NoError(t, b.RecordSuccess(ctx, url))

	stats, err := b.Stats(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Failures)
}

func TestIsOpenTransitionsToHalfOpenAfterRecovery(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBreaker(t, 1, 0)
	url := "https://example.com/hook"

	tripped, err := b.RecordFailure(ctx, url)
	require.NoError(t, err)
	require.True(t, tripped)

	// recoveryTimeout is 0, so the very next IsOpen check should flip to
	// half-open and let a probe through.
	open, err := b.IsOpen(ctx, url)
	require.NoError(t, err)
	assert.False(t, open)

	stats, err := b.Stats(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "half_open", stats.State)

	_ = mr
}

func TestRecordSuccessAfterHalfOpenClosesFully(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(t, 1, 0)
	url := "https://example.com/hook"

	_, err := b.RecordFailure(ctx, url)
	require.NoError(t, err)
	_, err = b.IsOpen(ctx, url) // flips to half-open
	require.NoError(t, err)

	require.NoError(t, b.RecordSuccess(ctx, url))

	stats, err := b.Stats(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 0, stats.Failures)
	assert.Equal(t, "", stats.OpenedAt)
}

func TestStatsDefaultsWhenUnset(t *testing.T) {
	b, _ := newTestBreaker(t, 5, time.Minute)
	stats, err := b.Stats(context.Background(), "https://example.com/never-seen")
	require.NoError(t, err)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 0, stats.Failures)
}
