package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/config"
)

// Redis backs token revocation and the geo cache. It is optional: when the
// server is down the API still starts and readiness reports it.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client and pings it a bounded number of times.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := waitForPing(ctx, "redis", cfg.ConnectAttempts, logger, ping); err != nil {
		logger.Warn("redis unreachable; revocation checks and geo cache will fail until it returns",
			zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return &Redis{Client: client}
}

// KV returns a prefixed key-value view whose entries expire after ttl (0 keeps them).
func (r *Redis) KV(prefix string, ttl time.Duration) *RedisKV {
	return NewRedisKV(r.Client, prefix, ttl)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping reports whether Redis answers; used by the readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return fmt.Errorf("redis: %w", ErrNotConfigured)
	}
	return r.Client.Ping(ctx).Err()
}
