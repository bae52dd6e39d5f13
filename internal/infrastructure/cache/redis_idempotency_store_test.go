package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisAddr returns PHARMA_TEST_REDIS_ADDR or skips the test
func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("PHARMA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PHARMA_TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestRedisIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, redisAddr(t), "", 0)
	require.NoError(t, err)

	store := NewRedisIdempotencyStore(client, "pharmaos-test:"+uuid.NewString()+":")
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	fresh, err := store.MarkProcessed(ctx, "sale:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(ctx, "sale:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	processed, err := store.IsProcessed(ctx, "sale:1")
	require.NoError(t, err)
	assert.True(t, processed)

	require.NoError(t, store.Release(ctx, "sale:1"))
	processed, err = store.IsProcessed(ctx, "sale:1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestOpenIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("no redis host uses memory", func(t *testing.T) {
		store, err := OpenIdempotencyStore(ctx, config.RedisConfig{}, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}
		store, err := OpenIdempotencyStore(ctx, cfg, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis marked required fails", func(t *testing.T) {
		cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1, Required: true}
		_, err := OpenIdempotencyStore(ctx, cfg, nil)
		assert.Error(t, err)
	})
}
