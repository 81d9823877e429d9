package cache

import (
	"time"

	domrepo "PriceFusion/internal/domain/repository"
)

// DefaultTTL applies when Set is called with a non-positive ttl.
const DefaultTTL = time.Hour

// KeyPrefix namespaces fused price keys in shared stores.
const KeyPrefix = "fused:"

func resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

var (
	_ domrepo.QuoteCache = (*TTLCache)(nil)
	_ domrepo.QuoteCache = (*RedisCache)(nil)
	_ domrepo.QuoteCache = (*LayeredCache)(nil)
)
