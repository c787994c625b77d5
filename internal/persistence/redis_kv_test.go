package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to TEST_REDIS_ADDR, skipping when it is not set or unreachable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisKV_RoundTripAndTake(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString() + ":"
	kv := NewRedisKV(client, prefix, time.Minute)

	require.NoError(t, kv.Set(ctx, "force_logout", "true"))
	assert.Equal(t, int64(1), client.Exists(ctx, prefix+"force_logout").Val())
	assert.Greater(t, client.TTL(ctx, prefix+"force_logout").Val(), time.Duration(0))

	val, ok, err := kv.Take(ctx, "force_logout")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", val)

	_, ok, err = kv.Get(ctx, "force_logout")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Remove(ctx, "missing"))
}
