package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder wraps an Embedder with a content-addressed, TTL-bounded
// LRU cache. The cache is authoritative: a hit never reaches the network.
// Concurrent misses for the same key are coalesced via single-flight so
// that only one of them calls the wrapped embedder.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.LRU[string, []float32]
	group singleflight.Group
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size and TTL.
func NewCachedEmbedder(inner Embedder, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = 10_000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbedder{
		inner: inner,
		cache: lru.NewLRU[string, []float32](size, nil, ttl),
	}
}

// cacheKey hashes the text together with the model id and task type, so a
// model change invalidates the cache without an explicit flush and the
// document/query variants of the same text never collide. The text is
// hashed exactly as given: it is not trimmed, case-folded or otherwise
// normalised, so texts that differ only in whitespace or case get separate
// entries.
func (c *CachedEmbedder) cacheKey(text string, taskType TaskType) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName() + "\x00" + string(taskType)))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text/taskType if present; otherwise
// it calls the wrapped embedder once per key, even under concurrent callers.
func (c *CachedEmbedder) Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error) {
	key := c.cacheKey(text, taskType)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if vec, ok := c.cache.Get(key); ok {
			return vec, nil
		}
		vec, err := c.inner.Embed(ctx, text, taskType)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Dimension passes through to the wrapped embedder.
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// ModelName passes through to the wrapped embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
