package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillctx/quill/ai/llm"
	"github.com/quillctx/quill/ai/metrics"
)

const (
	// DefaultNumQueries is how many paraphrases are requested from the
	// generator, in addition to the original query.
	DefaultNumQueries = 3

	// rrfK dampens the rank contribution 1/(rrfK+rank+1) so that top ranks
	// do not dominate the fusion.
	rrfK = 60
)

// MultiQuery retrieves with several paraphrases of the query and fuses the
// per-query rankings with reciprocal rank fusion.
type MultiQuery struct {
	generator  GenerationService
	retriever  *Retriever
	numQueries int
	metrics    *metrics.Exporter
	logger     *slog.Logger
}

// NewMultiQuery creates a MultiQuery strategy. numQueries <= 0 selects the
// default.
func NewMultiQuery(generator GenerationService, retriever *Retriever, numQueries int, m *metrics.Exporter, logger *slog.Logger) *MultiQuery {
	if numQueries <= 0 {
		numQueries = DefaultNumQueries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiQuery{
		generator:  generator,
		retriever:  retriever,
		numQueries: numQueries,
		metrics:    m,
		logger:     logger,
	}
}

// expand asks the generator for paraphrases and returns the original query
// followed by the variations. Lines are trimmed and empties dropped;
// duplicates are kept, which only reinforces the shared ranking.
func (m *MultiQuery) expand(ctx context.Context, query string) ([]string, error) {
	reply, err := m.generator.Chat(ctx, []llm.Message{
		llm.UserMessage(fmt.Sprintf(expandPromptTemplate, m.numQueries, query)),
	})
	if err != nil {
		return nil, err
	}

	queries := []string{query}
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		queries = append(queries, line)
	}
	return queries, nil
}

// Search expands the query, retrieves per variation in parallel, and fuses
// the rankings. The fused score replaces the vector score and is meaningful
// only for ordering. Chunk metadata comes from the first ranking a chunk was
// seen in.
func (m *MultiQuery) Search(ctx context.Context, query string, k int, opts *SearchOptions) ([]*SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	start := time.Now()

	queries, err := m.expand(ctx, query)
	if err != nil {
		return nil, err
	}

	rankings := make([][]*SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := m.retriever.Search(gctx, q, k, opts)
			if err != nil {
				return err
			}
			rankings[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRankings(rankings, k)
	m.metrics.ObserveRetrieval("multi_query", time.Since(start))
	m.logger.DebugContext(ctx, "multi-query retrieval done",
		"queries", len(queries),
		"results", len(fused),
		"duration_ms", time.Since(start).Milliseconds())
	return fused, nil
}

// fuseRankings merges per-query rankings with reciprocal rank fusion. A
// chunk appearing in several rankings accumulates one contribution per
// ranking based on its zero-based rank there.
func fuseRankings(rankings [][]*SearchResult, k int) []*SearchResult {
	scores := map[int64]float64{}
	seen := map[int64]*SearchResult{}
	for _, ranking := range rankings {
		for rank, result := range ranking {
			scores[result.ChunkID] += 1.0 / float64(rrfK+rank+1)
			if _, ok := seen[result.ChunkID]; !ok {
				seen[result.ChunkID] = result
			}
		}
	}

	fused := make([]*SearchResult, 0, len(seen))
	for chunkID, result := range seen {
		merged := *result
		merged.Score = scores[chunkID]
		fused = append(fused, &merged)
	}

	// Tie-break on chunk id so the fused order is deterministic.
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused
}
