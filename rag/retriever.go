package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quillctx/quill/ai/cache"
	"github.com/quillctx/quill/ai/metrics"
	"github.com/quillctx/quill/rag/vector"
	"github.com/quillctx/quill/store"
)

const (
	// DefaultTopK is used when a caller passes k <= 0.
	DefaultTopK = 5

	// overFetchFactor widens the vector search when post-hoc filters may
	// discard hits. The widened search runs once; filtered-out hits are not
	// re-fetched.
	overFetchFactor = 3

	RetrievalCacheSize = 500
	RetrievalCacheTTL  = 5 * time.Minute
)

// NewRetrievalCache creates the cache for retrieval results.
func NewRetrievalCache() *cache.LRU[string, []*SearchResult] {
	return cache.NewLRU[string, []*SearchResult](RetrievalCacheSize, RetrievalCacheTTL)
}

// EmbeddingService is the slice of the embedding gateway retrieval needs.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// ChunkStore joins vector hits back to chunk records.
type ChunkStore interface {
	FindChunks(ctx context.Context, find *store.FindChunk) ([]*store.ChunkWithDocument, error)
}

// Retriever performs embedding-based nearest-neighbor search over the chunk
// corpus.
type Retriever struct {
	embedder EmbeddingService
	index    vector.Index
	chunks   ChunkStore
	cache    *cache.LRU[string, []*SearchResult]
	metrics  *metrics.Exporter
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. cache, m and logger may be nil.
func NewRetriever(embedder EmbeddingService, index vector.Index, chunks ChunkStore, c *cache.LRU[string, []*SearchResult], m *metrics.Exporter, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		cache:    c,
		metrics:  m,
		logger:   logger,
	}
}

// Search embeds the query and returns up to k chunks ordered by descending
// similarity score. Results are cached per (query, k, filters); cached
// result slices must be treated as read-only.
func (r *Retriever) Search(ctx context.Context, query string, k int, opts *SearchOptions) ([]*SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	requestID := uuid.New().String()
	start := time.Now()

	var key string
	if r.cache != nil {
		if opts == nil {
			opts = &SearchOptions{}
		}
		key = cache.Fingerprint("search", query, k, opts.DocumentIDs, opts.FileTypes)
		if cached, ok := r.cache.Get(key); ok {
			r.metrics.CacheHit(metrics.CacheRetrieval)
			r.logger.DebugContext(ctx, "retrieval cache hit", "request_id", requestID, "results", len(cached))
			return cached, nil
		}
		r.metrics.CacheMiss(metrics.CacheRetrieval)
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.searchByVector(ctx, queryVec, k, opts)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(key, results)
	}
	r.metrics.ObserveRetrieval("vector", time.Since(start))
	r.logger.DebugContext(ctx, "retrieval done",
		"request_id", requestID,
		"k", k,
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return results, nil
}

// searchByVector is the shared lookup behind Search and the strategies that
// supply their own query vector. The index is searched once; when filters
// are present the search is widened to k*overFetchFactor so post-hoc
// filtering can still fill k slots, and fewer than k results are returned if
// the widened fetch does not survive the filters.
func (r *Retriever) searchByVector(ctx context.Context, queryVec []float32, k int, opts *SearchOptions) ([]*SearchResult, error) {
	fetchK := k
	if opts.hasFilters() {
		fetchK = k * overFetchFactor
	}

	entries, err := r.index.Search(ctx, queryVec, fetchK)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []*SearchResult{}, nil
	}

	// Table vectors share the index but have no chunk record. They count
	// against the fetched window like any other dropped hit; the index is
	// never searched a second time to backfill, so fewer than k results can
	// come back.
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.ID >= vector.TableIDOffset {
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return []*SearchResult{}, nil
	}

	find := &store.FindChunk{IDs: ids, OnlyEmbedded: true}
	if opts != nil {
		find.DocumentIDs = opts.DocumentIDs
		find.FileTypes = opts.FileTypes
	}
	chunks, err := r.chunks.FindChunks(ctx, find)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*store.ChunkWithDocument, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	// Entries arrive in ascending distance order, so appending in entry
	// order yields descending score order.
	results := make([]*SearchResult, 0, k)
	for _, e := range entries {
		chunk, ok := byID[e.ID]
		if !ok {
			continue
		}
		results = append(results, &SearchResult{
			ChunkID:      chunk.ID,
			DocumentID:   chunk.DocumentID,
			Filename:     chunk.Filename,
			Content:      chunk.Content,
			Context:      chunk.Context,
			Score:        1.0 / (1.0 + e.Distance),
			PageNumber:   chunk.PageNumber,
			SectionTitle: chunk.SectionTitle,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}
