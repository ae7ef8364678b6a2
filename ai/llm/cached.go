package llm

import (
	"context"

	"github.com/quillctx/quill/ai/cache"
	"github.com/quillctx/quill/ai/metrics"
)

// CacheSize bounds the response cache. Responses have no TTL; they are
// evicted only by capacity pressure.
const CacheSize = 200

// NewCache creates a generation response cache with the default bounds.
func NewCache() *cache.LRU[string, string] {
	return cache.NewLRU[string, string](CacheSize, 0)
}

// Cached decorates a Service with a response cache for synchronous chat.
// Streaming calls are never cached: a stream is consumed once and callers
// expect live tokens.
type Cached struct {
	service Service
	cache   *cache.LRU[string, string]
	metrics *metrics.Exporter
}

// NewCached wraps a generation service with the given cache. metrics may
// be nil.
func NewCached(service Service, c *cache.LRU[string, string], m *metrics.Exporter) *Cached {
	if c == nil {
		c = NewCache()
	}
	return &Cached{service: service, cache: c, metrics: m}
}

func (c *Cached) Chat(ctx context.Context, messages []Message) (string, error) {
	parts := make([]any, 0, 2*len(messages)+1)
	parts = append(parts, c.service.Model())
	for _, m := range messages {
		parts = append(parts, m.Role, m.Content)
	}
	key := cache.Fingerprint(parts...)

	if answer, ok := c.cache.Get(key); ok {
		c.metrics.CacheHit(metrics.CacheGeneration)
		return answer, nil
	}
	c.metrics.CacheMiss(metrics.CacheGeneration)

	answer, err := c.service.Chat(ctx, messages)
	if err != nil {
		// Failures are not cached.
		return "", err
	}
	c.cache.Set(key, answer)
	return answer, nil
}

func (c *Cached) ChatStream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	return c.service.ChatStream(ctx, messages)
}

func (c *Cached) Model() string {
	return c.service.Model()
}
