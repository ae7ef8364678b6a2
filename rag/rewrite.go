package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quillctx/quill/ai/llm"
	"github.com/quillctx/quill/ai/metrics"
)

// Rewrite reformulates the query into a keyword-richer search phrase before
// retrieval. Unlike multi-query it issues a single retrieval, so it costs one
// extra generation and nothing more.
type Rewrite struct {
	generator GenerationService
	retriever *Retriever
	metrics   *metrics.Exporter
	logger    *slog.Logger
}

func NewRewrite(generator GenerationService, retriever *Retriever, m *metrics.Exporter, logger *slog.Logger) *Rewrite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewrite{
		generator: generator,
		retriever: retriever,
		metrics:   m,
		logger:    logger,
	}
}

// Search rewrites the query and retrieves with the rewritten form. A rewrite
// that comes back empty falls back to the original query; a generation error
// fails the call.
func (r *Rewrite) Search(ctx context.Context, query string, k int, opts *SearchOptions) ([]*SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	start := time.Now()

	rewritten, err := r.generator.Chat(ctx, []llm.Message{
		llm.UserMessage(fmt.Sprintf(rewritePromptTemplate, query)),
	})
	if err != nil {
		return nil, err
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		rewritten = query
	}

	results, err := r.retriever.Search(ctx, rewritten, k, opts)
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveRetrieval("rewrite", time.Since(start))
	r.logger.DebugContext(ctx, "rewrite retrieval done",
		"rewritten_len", len(rewritten),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return results, nil
}
