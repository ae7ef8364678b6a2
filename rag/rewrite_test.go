package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteSearchUsesRewrittenQuery(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 10)

	// The original query lands at the origin; the rewritten phrase lands
	// near chunk 4. Retrieval must run on the rewritten form.
	embedder.vectors["specific detailed query"] = []float32{4, 0}

	generator := &fakeGenerator{reply: "  specific detailed query\n"}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	rw := NewRewrite(generator, retriever, nil, nil)

	results, err := rw.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, generator.calls)
	assert.Equal(t, int64(4), results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9, "exact match has distance zero")
}

func TestRewriteSearchEmptyRewriteFallsBack(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 6)

	generator := &fakeGenerator{reply: "   \n"}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	rw := NewRewrite(generator, retriever, nil, nil)

	results, err := rw.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(0), results[0].ChunkID, "original query retrieved as-is")
}

func TestRewriteSearchGenerationFailureFailsFast(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 5)

	generator := &fakeGenerator{err: errors.New("generator down")}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	rw := NewRewrite(generator, retriever, nil, nil)

	_, err := rw.Search(ctx, "query", 3, nil)
	require.Error(t, err)
	assert.Equal(t, 0, int(embedder.calls.Load()), "no retrieval after failed rewrite")
}

func TestRewriteSearchRespectsFilters(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 12)
	embedder.vectors["rewritten"] = []float32{0, 0}

	generator := &fakeGenerator{reply: "rewritten"}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	rw := NewRewrite(generator, retriever, nil, nil)

	results, err := rw.Search(ctx, "query", 3, &SearchOptions{DocumentIDs: []int64{1}})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, int64(1), res.DocumentID)
	}
}
