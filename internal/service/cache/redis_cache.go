package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"PriceFusion/internal/domain/models"
)

// RedisCache keeps fused prices as JSON with native key expiry.
type RedisCache struct {
	cli    redis.UniversalClient
	prefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisCache(cli redis.UniversalClient) *RedisCache {
	return &RedisCache{cli: cli, prefix: KeyPrefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) (models.FusedPrice, bool, error) {
	b, err := r.cli.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.FusedPrice{}, false, nil
		}
		return models.FusedPrice{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var fp models.FusedPrice
	if err := json.Unmarshal(b, &fp); err != nil {
		return models.FusedPrice{}, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return fp, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, v models.FusedPrice, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.cli.Set(ctx, r.prefix+key, b, resolveTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}
