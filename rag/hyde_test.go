package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyDESearchEmbedsPassage(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 10)

	// The query itself would land at the origin; the hypothetical passage
	// lands near chunk 5. HyDE must search with the passage vector.
	embedder.vectors["a hypothetical passage"] = []float32{5, 0}

	generator := &fakeGenerator{reply: "a hypothetical passage"}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	h := NewHyDE(generator, embedder, retriever, nil, nil)

	results, err := h.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, generator.calls)
	assert.Equal(t, int64(5), results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9, "exact match has distance zero")
}

func TestHyDESearchGenerationFailureFailsFast(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 5)

	generator := &fakeGenerator{err: errors.New("generator down")}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	h := NewHyDE(generator, embedder, retriever, nil, nil)

	_, err := h.Search(ctx, "query", 3, nil)
	require.Error(t, err)
	assert.Equal(t, 0, int(embedder.calls.Load()), "no embedding after failed synthesis")
}

func TestHyDESearchEmbedFailure(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 5)
	embedder.err = errors.New("embedder down")

	generator := &fakeGenerator{reply: "passage"}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	h := NewHyDE(generator, embedder, retriever, nil, nil)

	_, err := h.Search(ctx, "query", 3, nil)
	require.Error(t, err)
}

func TestHyDESearchRespectsFilters(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 12)
	embedder.vectors["passage"] = []float32{0, 0}

	generator := &fakeGenerator{reply: "passage"}
	retriever := NewRetriever(embedder, idx, chunks, nil, nil, nil)
	h := NewHyDE(generator, embedder, retriever, nil, nil)

	results, err := h.Search(ctx, "query", 3, &SearchOptions{DocumentIDs: []int64{2}})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, int64(2), res.DocumentID)
	}
}
