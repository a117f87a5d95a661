package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes vectors by a hash of the text. Providers are deterministic,
// so a cached vector is exactly what the provider would return again. Cached slices
// are shared and must not be modified by callers.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

// Compile-time check that CachedEmbedder implements Embedder.
var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU cache holding up to size vectors.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Model returns the wrapped model name.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Dimension returns the wrapped dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Hits returns the number of texts served from the cache.
func (c *CachedEmbedder) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of texts sent to the provider.
func (c *CachedEmbedder) Misses() int64 {
	return c.misses.Load()
}

// Embed returns the cached vector for text or asks the provider.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch serves cached texts directly and sends each distinct uncached text to
// the provider once, in first-occurrence order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	missIndex := make(map[string]int)
	for i, text := range texts {
		key := cacheKey(text)
		keys[i] = key
		if v, ok := c.cache.Get(key); ok {
			vectors[i] = v
			c.hits.Add(1)
			continue
		}
		if _, queued := missIndex[key]; !queued {
			missIndex[key] = len(missTexts)
			missTexts = append(missTexts, text)
		}
	}

	if len(missTexts) > 0 {
		fetched, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(fetched) != len(missTexts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(fetched), len(missTexts))
		}
		c.misses.Add(int64(len(missTexts)))
		for i, text := range missTexts {
			c.cache.Add(cacheKey(text), fetched[i])
		}
		for i := range vectors {
			if vectors[i] == nil {
				vectors[i] = fetched[missIndex[keys[i]]]
			}
		}
	}
	return vectors, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
