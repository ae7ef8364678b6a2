package embedding

import (
	"context"
	"time"

	"github.com/quillctx/quill/ai/cache"
	"github.com/quillctx/quill/ai/metrics"
)

// Embedding cache bounds. Entries are keyed by (text, model), so a model
// swap never serves stale vectors.
const (
	CacheSize = 1000
	CacheTTL  = time.Hour
)

// NewCache creates an embedding cache with the default bounds.
func NewCache() *cache.LRU[string, []float32] {
	return cache.NewLRU[string, []float32](CacheSize, CacheTTL)
}

// Cached decorates a Service with a read-through/write-through cache.
// On a batch call each text is looked up independently; only the misses are
// sent to the underlying provider in a single batched call, and the results
// are spliced back into the original input order.
type Cached struct {
	provider Service
	cache    *cache.LRU[string, []float32]
	metrics  *metrics.Exporter
}

// NewCached wraps a provider with the given cache. metrics may be nil.
func NewCached(provider Service, c *cache.LRU[string, []float32], m *metrics.Exporter) *Cached {
	if c == nil {
		c = NewCache()
	}
	return &Cached{provider: provider, cache: c, metrics: m}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missTexts []string
	var missIndices []int
	for i, text := range texts {
		key := cache.Fingerprint(text, c.provider.Model())
		if vec, ok := c.cache.Get(key); ok {
			vectors[i] = vec
			c.metrics.CacheHit(metrics.CacheEmbedding)
			continue
		}
		c.metrics.CacheMiss(metrics.CacheEmbedding)
		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.provider.EmbedBatch(ctx, missTexts)
	if err != nil {
		// Provider failures are not cached.
		return nil, err
	}

	for j, idx := range missIndices {
		key := cache.Fingerprint(texts[idx], c.provider.Model())
		c.cache.Set(key, fresh[j])
		vectors[idx] = fresh[j]
	}
	return vectors, nil
}

func (c *Cached) Dimensions() int {
	return c.provider.Dimensions()
}

func (c *Cached) Model() string {
	return c.provider.Model()
}
