package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"PriceFusion/internal/domain/models"
)

const shardCount = 32

type entry struct {
	v   models.FusedPrice
	exp time.Time
}

type shard struct {
	mu sync.RWMutex
	m  map[string]entry
}

// TTLCache is an in-process fused price cache. Keys are spread over shards so
// writers of different keys rarely contend. Expired entries are dropped lazily
// on read and, when a sweeper runs, periodically.
type TTLCache struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// TTLOption configures TTLCache.
type TTLOption func(*TTLCache)

func WithClock(now func() time.Time) TTLOption {
	return func(c *TTLCache) { c.now = now }
}

func NewTTLCache(opts ...TTLOption) *TTLCache {
	c := &TTLCache{now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard{m: make(map[string]entry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTLCache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

func (c *TTLCache) Get(_ context.Context, key string) (models.FusedPrice, bool, error) {
	s := c.shardFor(key)
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return models.FusedPrice{}, false, nil
	}
	if c.now().After(e.exp) {
		s.mu.Lock()
		// another writer may have replaced it meanwhile
		if cur, ok := s.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(s.m, key)
		}
		s.mu.Unlock()
		return models.FusedPrice{}, false, nil
	}
	return e.v.Clone(), true, nil
}

func (c *TTLCache) Set(_ context.Context, key string, v models.FusedPrice, ttl time.Duration) error {
	s := c.shardFor(key)
	e := entry{v: v.Clone(), exp: c.now().Add(resolveTTL(ttl))}
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
	return nil
}

func (c *TTLCache) Delete(_ context.Context, key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Len counts stored entries, expired or not.
func (c *TTLCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Sweep removes expired entries and returns how many were dropped.
func (c *TTLCache) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.m {
			if now.After(e.exp) {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (c *TTLCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}
