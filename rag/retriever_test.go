package rag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillctx/quill/ai/llm"
	"github.com/quillctx/quill/rag/vector"
	"github.com/quillctx/quill/store"
)

// fakeEmbedder returns a fixed vector per known text and counts calls.
// The counter is atomic because multi-query retrieval embeds from several
// goroutines at once.
type fakeEmbedder struct {
	vectors map[string][]float32
	dim     int
	calls   atomic.Int32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

// fakeChunkStore serves chunk lookups from memory with the same filter
// semantics as the database driver.
type fakeChunkStore struct {
	chunks map[int64]*store.ChunkWithDocument
	err    error
}

func (f *fakeChunkStore) FindChunks(_ context.Context, find *store.FindChunk) ([]*store.ChunkWithDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	matches := func(c *store.ChunkWithDocument) bool {
		if len(find.IDs) > 0 && !containsInt64(find.IDs, c.ID) {
			return false
		}
		if len(find.DocumentIDs) > 0 && !containsInt64(find.DocumentIDs, c.DocumentID) {
			return false
		}
		if len(find.FileTypes) > 0 && !containsString(find.FileTypes, c.FileType) {
			return false
		}
		if find.OnlyEmbedded && !c.HasEmbedding {
			return false
		}
		return true
	}
	var list []*store.ChunkWithDocument
	for _, c := range f.chunks {
		if matches(c) {
			list = append(list, c)
		}
	}
	return list, nil
}

func containsInt64(list []int64, v int64) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// fakeGenerator replies with canned content and counts calls.
type fakeGenerator struct {
	reply  string
	stream []string
	calls  int
	err    error
}

func (f *fakeGenerator) Chat(_ context.Context, _ []llm.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) ChatStream(_ context.Context, _ []llm.Message) (<-chan string, <-chan error) {
	f.calls++
	contentCh := make(chan string, len(f.stream))
	errCh := make(chan error, 1)
	if f.err != nil {
		errCh <- f.err
	} else {
		for _, token := range f.stream {
			contentCh <- token
		}
	}
	close(contentCh)
	close(errCh)
	return contentCh, errCh
}

// newCorpus builds an index and chunk store holding chunks at unit distance
// steps from the query vector: chunk i sits at distance i from "query".
func newCorpus(t *testing.T, n int) (*fakeEmbedder, vector.Index, *fakeChunkStore) {
	t.Helper()
	ctx := context.Background()

	idx := vector.NewMemoryIndex(2)
	chunks := map[int64]*store.ChunkWithDocument{}
	for i := 1; i <= n; i++ {
		id := int64(i)
		require.NoError(t, idx.Add(ctx, id, []float32{float32(i), 0}))
		page := i
		chunks[id] = &store.ChunkWithDocument{
			Chunk: store.Chunk{
				ID:           id,
				DocumentID:   id%3 + 1,
				Content:      "chunk content",
				Context:      "chunk context",
				HasEmbedding: true,
				PageNumber:   &page,
			},
			Filename: "doc.pdf",
			FileType: "pdf",
		}
	}

	embedder := &fakeEmbedder{
		dim:     2,
		vectors: map[string][]float32{"query": {0, 0}},
	}
	return embedder, idx, &fakeChunkStore{chunks: chunks}
}

func TestRetrieverSearchRanking(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 10)
	r := NewRetriever(embedder, idx, chunks, nil, nil, nil)

	results, err := r.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Nearest chunks, descending score, no duplicates.
	seen := map[int64]bool{}
	for i, res := range results {
		assert.False(t, seen[res.ChunkID], "duplicate chunk id")
		seen[res.ChunkID] = true
		if i > 0 {
			assert.LessOrEqual(t, res.Score, results[i-1].Score)
		}
	}
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.InDelta(t, 1.0/(1.0+1.0), results[0].Score, 1e-9)
	assert.InDelta(t, 1.0/(1.0+2.0), results[1].Score, 1e-9)
}

func TestRetrieverSearchDefaultK(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 10)
	r := NewRetriever(embedder, idx, chunks, nil, nil, nil)

	results, err := r.Search(ctx, "query", 0, nil)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestRetrieverSearchDocumentFilter(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 12)
	r := NewRetriever(embedder, idx, chunks, nil, nil, nil)

	opts := &SearchOptions{DocumentIDs: []int64{1}}
	results, err := r.Search(ctx, "query", 3, opts)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)
	for _, res := range results {
		assert.Equal(t, int64(1), res.DocumentID)
	}
}

func TestRetrieverSearchFilterNeverRequeries(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 30)

	// Only one chunk in the corpus belongs to an absent document type, so
	// the over-fetched window cannot fill k. The retriever must return what
	// survived rather than search again.
	opts := &SearchOptions{FileTypes: []string{"md"}}
	for _, c := range chunks.chunks {
		if c.ID == 25 {
			c.FileType = "md"
		}
	}
	r := NewRetriever(embedder, idx, chunks, nil, nil, nil)

	results, err := r.Search(ctx, "query", 5, opts)
	require.NoError(t, err)
	// Chunk 25 is outside the widened window of 15 nearest, so nothing
	// survives the filter.
	assert.Empty(t, results)
}

func TestRetrieverSearchFewerThanK(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 2)
	r := NewRetriever(embedder, idx, chunks, nil, nil, nil)

	results, err := r.Search(ctx, "query", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieverSearchEmptyIndex(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{dim: 2, vectors: map[string][]float32{"query": {0, 0}}}
	idx := vector.NewMemoryIndex(2)
	r := NewRetriever(embedder, idx, &fakeChunkStore{}, nil, nil, nil)

	results, err := r.Search(ctx, "query", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieverSearchCaches(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 10)
	r := NewRetriever(embedder, idx, chunks, NewRetrievalCache(), nil, nil)

	first, err := r.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	require.Equal(t, 1, int(embedder.calls.Load()))

	second, err := r.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, int(embedder.calls.Load()), "cached search must not embed again")
	assert.Equal(t, first, second)

	// Different k is a different cache entry.
	_, err = r.Search(ctx, "query", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, int(embedder.calls.Load()))
}

func TestRetrieverSearchEmbedFailureNotCached(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 5)
	embedder.err = errors.New("embedder down")
	r := NewRetriever(embedder, idx, chunks, NewRetrievalCache(), nil, nil)

	_, err := r.Search(ctx, "query", 3, nil)
	require.Error(t, err)

	embedder.err = nil
	results, err := r.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRetrieverSkipsTableVectors(t *testing.T) {
	ctx := context.Background()
	embedder, idx, chunks := newCorpus(t, 3)

	// A table vector at the very front of the ranking has no chunk record
	// and must be passed over. It still occupies one of the k fetched
	// slots; the index is not searched again to backfill.
	require.NoError(t, idx.Add(ctx, vector.TableIDOffset+1, []float32{0, 0}))
	r := NewRetriever(embedder, idx, chunks, nil, nil, nil)

	results, err := r.Search(ctx, "query", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ChunkID)
	for _, res := range results {
		assert.Less(t, res.ChunkID, vector.TableIDOffset)
	}
}
