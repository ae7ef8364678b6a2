package rag

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/quillctx/quill/ai/metrics"
)

const (
	// rerankAlpha weighs the vector score against the lexical overlap score.
	rerankAlpha = 0.7

	// rerankFetchFactor widens the base retrieval so reranking has
	// candidates beyond the final k.
	rerankFetchFactor = 2
)

// Rerank retrieves a widened candidate set and reorders it by blending the
// vector score with a lexical term-overlap score.
type Rerank struct {
	retriever *Retriever
	metrics   *metrics.Exporter
	logger    *slog.Logger
}

// NewRerank creates a Rerank strategy over the given retriever.
func NewRerank(retriever *Retriever, m *metrics.Exporter, logger *slog.Logger) *Rerank {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rerank{retriever: retriever, metrics: m, logger: logger}
}

// Search retrieves 2k candidates and reorders them by
// final = 0.7*vector + 0.3*overlap, returning the top k.
func (r *Rerank) Search(ctx context.Context, query string, k int, opts *SearchOptions) ([]*RankedResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	start := time.Now()

	candidates, err := r.retriever.Search(ctx, query, k*rerankFetchFactor, opts)
	if err != nil {
		return nil, err
	}

	queryTerms := termSet(query)
	ranked := make([]*RankedResult, len(candidates))
	for i, c := range candidates {
		overlap := termOverlap(queryTerms, c.Content)
		final := rerankAlpha*c.Score + (1-rerankAlpha)*overlap
		rr := &RankedResult{
			SearchResult:  *c,
			OriginalScore: c.Score,
			RerankScore:   overlap,
			FinalScore:    final,
		}
		rr.Score = final
		ranked[i] = rr
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	r.metrics.ObserveRetrieval("rerank", time.Since(start))
	r.logger.DebugContext(ctx, "rerank retrieval done",
		"candidates", len(candidates),
		"results", len(ranked),
		"duration_ms", time.Since(start).Milliseconds())
	return ranked, nil
}

// termSet lowercases and splits on whitespace.
func termSet(s string) map[string]struct{} {
	terms := map[string]struct{}{}
	for _, t := range strings.Fields(strings.ToLower(s)) {
		terms[t] = struct{}{}
	}
	return terms
}

// termOverlap is |terms(query) ∩ terms(content)| / |terms(query)|. An empty
// query term set scores zero.
func termOverlap(queryTerms map[string]struct{}, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	contentTerms := termSet(content)
	matched := 0
	for t := range queryTerms {
		if _, ok := contentTerms[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
