package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const (
	defaultCacheMaxItems = 1000
	defaultCacheTTL      = 30 * time.Minute
)

type cacheEntry struct {
	vector    []float32
	expiresAt time.Time
}

// CachedEmbedder wraps an EmbeddingService with an in-memory cache keyed by
// text content. Repeated queries and re-ingested chunks skip the remote call.
type CachedEmbedder struct {
	inner EmbeddingService

	mu       sync.RWMutex
	items    map[string]cacheEntry
	maxItems int
	ttl      time.Duration
}

func NewCachedEmbedder(inner EmbeddingService) *CachedEmbedder {
	return &CachedEmbedder{
		inner:    inner,
		items:    make(map[string]cacheEntry),
		maxItems: defaultCacheMaxItems,
		ttl:      defaultCacheTTL,
	}
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Embed returns cached vectors where available and fetches only the misses,
// preserving input order.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	missing := []int{}

	c.mu.RLock()
	now := time.Now()
	for i, text := range texts {
		entry, ok := c.items[cacheKey(text)]
		if ok && now.Before(entry.expiresAt) {
			vectors[i] = entry.vector
		} else {
			missing = append(missing, i)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return vectors, nil
	}

	missingTexts := make([]string, len(missing))
	for i, idx := range missing {
		missingTexts[i] = texts[idx]
	}
	fetched, err := c.inner.Embed(ctx, missingTexts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	expiresAt := time.Now().Add(c.ttl)
	for i, idx := range missing {
		vectors[idx] = fetched[i]
		c.items[cacheKey(texts[idx])] = cacheEntry{vector: fetched[i], expiresAt: expiresAt}
	}
	c.evictLocked()
	c.mu.Unlock()

	return vectors, nil
}

// evictLocked drops expired entries first, then arbitrary ones until the
// cache fits. The caller must hold the write lock.
func (c *CachedEmbedder) evictLocked() {
	if len(c.items) <= c.maxItems {
		return
	}
	now := time.Now()
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
		}
	}
	for key := range c.items {
		if len(c.items) <= c.maxItems {
			break
		}
		delete(c.items, key)
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
