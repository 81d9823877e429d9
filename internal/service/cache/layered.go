package cache

import (
	"context"
	"time"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
)

// LayeredCache reads a local L1 before a shared L2 and writes through both.
type LayeredCache struct {
	l1    domrepo.QuoteCache
	l2    domrepo.QuoteCache
	l1TTL time.Duration
}

// NewLayeredCache keeps L1 entries at most l1TTL so other instances' writes
// become visible within that window.
func NewLayeredCache(l1, l2 domrepo.QuoteCache, l1TTL time.Duration) *LayeredCache {
	if l1TTL <= 0 {
		l1TTL = time.Minute
	}
	return &LayeredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (lc *LayeredCache) Get(ctx context.Context, key string) (models.FusedPrice, bool, error) {
	if v, ok, err := lc.l1.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	v, ok, err := lc.l2.Get(ctx, key)
	if err != nil || !ok {
		return models.FusedPrice{}, false, err
	}
	_ = lc.l1.Set(ctx, key, v, lc.l1TTL)
	return v, true, nil
}

func (lc *LayeredCache) Set(ctx context.Context, key string, v models.FusedPrice, ttl time.Duration) error {
	ttl = resolveTTL(ttl)
	if err := lc.l2.Set(ctx, key, v, ttl); err != nil {
		return err
	}
	return lc.l1.Set(ctx, key, v, min(ttl, lc.l1TTL))
}
