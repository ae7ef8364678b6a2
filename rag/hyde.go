package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillctx/quill/ai/llm"
	"github.com/quillctx/quill/ai/metrics"
)

// GenerationService is the slice of the generation gateway the strategies
// need.
type GenerationService interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// HyDE retrieves by embedding a hypothetical answer instead of the query.
// The synthesized passage is embedded through an uncached embedder: the
// passage is generated fresh per call, so an embedding cache entry would
// never be hit again.
type HyDE struct {
	generator GenerationService
	embedder  EmbeddingService // must bypass the embedding cache
	retriever *Retriever
	metrics   *metrics.Exporter
	logger    *slog.Logger
}

// NewHyDE creates a HyDE strategy over the given retriever. embedder should
// be the raw provider, not the cached decorator.
func NewHyDE(generator GenerationService, embedder EmbeddingService, retriever *Retriever, m *metrics.Exporter, logger *slog.Logger) *HyDE {
	if logger == nil {
		logger = slog.Default()
	}
	return &HyDE{
		generator: generator,
		embedder:  embedder,
		retriever: retriever,
		metrics:   m,
		logger:    logger,
	}
}

// Search synthesizes a hypothetical passage for the query, embeds it, and
// searches the index with that vector. A generation failure fails the whole
// call; there is no silent fallback to plain retrieval.
func (h *HyDE) Search(ctx context.Context, query string, k int, opts *SearchOptions) ([]*SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	start := time.Now()

	passage, err := h.generator.Chat(ctx, []llm.Message{
		llm.UserMessage(fmt.Sprintf(hydePromptTemplate, query)),
	})
	if err != nil {
		return nil, err
	}

	vec, err := h.embedder.Embed(ctx, passage)
	if err != nil {
		return nil, err
	}

	results, err := h.retriever.searchByVector(ctx, vec, k, opts)
	if err != nil {
		return nil, err
	}

	h.metrics.ObserveRetrieval("hyde", time.Since(start))
	h.logger.DebugContext(ctx, "hyde retrieval done",
		"passage_len", len(passage),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return results, nil
}
