package cache

import (
	"context"
	"fmt"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OpenIdempotencyStore returns the Redis store when a host is configured and
// answers PING. Without a host, or when Redis is down and cfg.Required is
// false, sale keys live in process memory and are not shared between API
// instances.
func OpenIdempotencyStore(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (shared.IdempotencyStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	addr := cfg.Addr()
	if addr == "" {
		log.Info("Idempotency keys kept in memory", zap.String("reason", "redis not configured"))
		return NewInMemoryIdempotencyStore(DefaultCleanupInterval), nil
	}

	client, err := NewRedisClient(ctx, addr, cfg.Password, cfg.DB)
	switch {
	case err == nil:
		log.Info("Idempotency keys kept in redis", zap.String("addr", addr))
		return NewRedisIdempotencyStore(client, ""), nil
	case cfg.Required:
		return nil, fmt.Errorf("redis %s unavailable: %w", addr, err)
	}
	log.Warn("Idempotency keys kept in memory", zap.String("reason", "redis unavailable"), zap.Error(err))
	return NewInMemoryIdempotencyStore(DefaultCleanupInterval), nil
}
