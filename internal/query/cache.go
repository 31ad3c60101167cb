package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the in-process L1 cache.
const DefaultCacheSize = 2000

// DefaultCacheTTL bounds how long an L2/L3 entry is trusted before it is
// treated as a miss, independent of the generation check.
const DefaultCacheTTL = 10 * time.Minute

// cacheEntry is what every tier stores. Generation pins the entry to the
// repository's index_generation (§3/§4.4) at fetch time: a later write
// bumps the generation, so a cached entry from a stale generation is
// rejected on read rather than served past its freshness window.
type cacheEntry struct {
	Generation int64     `json:"generation"`
	StoredAt   time.Time `json:"stored_at"`
	Results    []*Result `json:"results"`
}

// Cache is the three-tier query result cache: an in-process LRU (L1), an
// optional shared Redis tier (L2) for multi-process deployments, and an
// optional on-disk fingerprint-file tier (L3) that survives a process
// restart. Concurrent identical requests are coalesced with singleflight
// so a cache stampede only pays for one fan-out to symbolstore/
// semanticstore.
type Cache struct {
	l1    *lru.Cache[string, cacheEntry]
	l2    redis.Cmdable
	l3Dir string
	ttl   time.Duration
	group singleflight.Group
}

// CacheOption configures optional tiers on top of the always-present L1.
type CacheOption func(*Cache)

// WithRedis adds the L2 tier. client may be nil to leave L2 disabled.
func WithRedis(client redis.Cmdable) CacheOption {
	return func(c *Cache) { c.l2 = client }
}

// WithDiskTier adds the L3 tier, writing fingerprint files under dir.
func WithDiskTier(dir string) CacheOption {
	return func(c *Cache) { c.l3Dir = dir }
}

// WithTTL overrides DefaultCacheTTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// NewCache builds a cache with the given L1 size and any optional tiers.
func NewCache(l1Size int, opts ...CacheOption) *Cache {
	if l1Size <= 0 {
		l1Size = DefaultCacheSize
	}
	l1, _ := lru.New[string, cacheEntry](l1Size)
	c := &Cache{l1: l1, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives a deterministic cache key from the request shape. Two
// requests with the same repo, query text, and weights hash to the same
// key regardless of call order.
func Key(repoID, op, query string, weights Weights) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%.3f\x00%.3f", repoID, op, normalizeQuery(query), weights.Lexical, weights.Semantic)))
	return hex.EncodeToString(sum[:])
}

// Do returns the cached results for key if fresh as of generation, else
// calls fn (coalesced across concurrent callers via singleflight) and
// populates every tier with the result before returning it.
func (c *Cache) Do(ctx context.Context, key string, generation int64, fn func() ([]*Result, error)) ([]*Result, error) {
	if entry, ok := c.lookup(ctx, key, generation); ok {
		return entry.Results, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if entry, ok := c.lookup(ctx, key, generation); ok {
			return entry.Results, nil
		}
		results, err := fn()
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, cacheEntry{Generation: generation, StoredAt: time.Now(), Results: results})
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Result), nil
}

func (c *Cache) lookup(ctx context.Context, key string, generation int64) (cacheEntry, bool) {
	if entry, ok := c.l1.Get(key); ok && c.fresh(entry, generation) {
		return entry, true
	}

	if c.l2 != nil {
		if raw, err := c.l2.Get(ctx, "siftd:query:"+key).Bytes(); err == nil {
			var entry cacheEntry
			if json.Unmarshal(raw, &entry) == nil && c.fresh(entry, generation) {
				c.l1.Add(key, entry)
				return entry, true
			}
		}
	}

	if c.l3Dir != "" {
		if raw, err := os.ReadFile(c.diskPath(key)); err == nil {
			var entry cacheEntry
			if json.Unmarshal(raw, &entry) == nil && c.fresh(entry, generation) {
				c.l1.Add(key, entry)
				return entry, true
			}
		}
	}

	return cacheEntry{}, false
}

func (c *Cache) fresh(entry cacheEntry, generation int64) bool {
	if entry.Generation != generation {
		return false
	}
	return time.Since(entry.StoredAt) < c.ttl
}

func (c *Cache) store(ctx context.Context, key string, entry cacheEntry) {
	c.l1.Add(key, entry)

	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if c.l2 != nil {
		c.l2.Set(ctx, "siftd:query:"+key, raw, c.ttl)
	}
	if c.l3Dir != "" {
		if err := os.MkdirAll(c.l3Dir, 0o755); err == nil {
			_ = os.WriteFile(c.diskPath(key), raw, 0o644)
		}
	}
}

func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.l3Dir, key+".json")
}

// Invalidate drops key from L1 immediately; L2/L3 entries age out on their
// own via the generation check on next read.
func (c *Cache) Invalidate(key string) {
	c.l1.Remove(key)
}
