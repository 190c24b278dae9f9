package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	key := uuid.NewString()

	first, err := s.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.Acquired)

	busy, err := s.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, busy.InFlight())

	require.NoError(t, s.Complete(ctx, key, "order-1"))
	replay, err := s.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, replay.Acquired)
	assert.Equal(t, "order-1", replay.OrderID)

	other := uuid.NewString()
	_, err = s.Claim(ctx, other)
	require.NoError(t, err)
	require.NoError(t, s.Abandon(ctx, other))
	again, err := s.Claim(ctx, other)
	require.NoError(t, err)
	assert.True(t, again.Acquired, "abandoned keys can be claimed again")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, "k", "order-1"))

	now = now.Add(2 * time.Minute)
	c, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, c.Acquired)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("CHECKOUT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CHECKOUT_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStore(url, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}
