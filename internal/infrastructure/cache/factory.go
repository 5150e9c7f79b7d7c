package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency store named by
// idempotency.backend
type IdempotencyStoreFactory struct {
	cfg      config.IdempotencyConfig
	redisCfg config.RedisConfig
	client   *redis.Client
	logger   *zap.Logger
	fallback bool
}

// IdempotencyStoreFactoryOption configures the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithRedisClient reuses an already connected client
func WithRedisClient(client *redis.Client) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.client = client
	}
}

// WithInMemoryFallback allows the in-memory store when Redis is unreachable.
// Off by default: with several replicas a silent fallback lets each replica
// apply the same order event.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.fallback = allow
	}
}

// NewIdempotencyStoreFactory creates a factory
func NewIdempotencyStoreFactory(cfg config.IdempotencyConfig, redisCfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		cfg:      cfg,
		redisCfg: redisCfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore builds the configured store
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	switch f.cfg.Backend {
	case "memory":
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(0), nil
	case "redis":
		return f.createRedisStore(ctx)
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", f.cfg.Backend)
	}
}

func (f *IdempotencyStoreFactory) createRedisStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if f.client != nil {
		f.logger.Info("using Redis idempotency store", zap.String("addr", f.client.Options().Addr))
		return NewRedisIdempotencyStore(f.client, ""), nil
	}

	client, err := NewRedisClient(ctx, f.redisCfg.Addr(), f.redisCfg.Password, f.redisCfg.DB)
	if err == nil {
		f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisCfg.Addr()))
		store := NewRedisIdempotencyStore(client, "")
		store.ownClient = true
		return store, nil
	}
	if !f.fallback {
		return nil, fmt.Errorf("redis idempotency store unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
		"duplicate order events may be applied by more than one replica",
		zap.Error(err))
	return NewInMemoryIdempotencyStore(0), nil
}
