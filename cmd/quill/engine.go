package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/quillctx/quill/ai/cache"
	"github.com/quillctx/quill/ai/embedding"
	"github.com/quillctx/quill/ai/llm"
	"github.com/quillctx/quill/ai/metrics"
	"github.com/quillctx/quill/internal/profile"
	"github.com/quillctx/quill/rag"
	"github.com/quillctx/quill/rag/vector"
	"github.com/quillctx/quill/store"
	"github.com/quillctx/quill/store/db/sqlite"
)

// engine wires the full retrieval stack for CLI commands: store, vector
// index, cached gateways, strategies, orchestrator, and the cache manager
// behind the admin commands.
type engine struct {
	store       *store.Store
	index       vector.Index
	embedder    *embedding.Cached
	rawEmbedder embedding.Service
	generator   *llm.Cached
	retriever   *rag.Retriever
	hyde        *rag.HyDE
	multiQuery  *rag.MultiQuery
	rewrite     *rag.Rewrite
	rerank      *rag.Rerank
	caches      *cache.Manager
	metrics     *metrics.Exporter
	logger      *slog.Logger
}

// newEngine assembles an engine from the profile. Without a vector DSN the
// in-memory index is rebuilt from the embeddings persisted alongside the
// chunks; with one, searches go to pgvector directly.
func newEngine(ctx context.Context, p *profile.Profile, logger *slog.Logger) (*engine, error) {
	var driver store.Driver
	switch p.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(p.DSN)
		if err != nil {
			return nil, err
		}
		driver = db
	default:
		return nil, errors.Errorf("unsupported driver: %s", p.Driver)
	}

	st := store.New(driver)
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}

	rawEmbedder, err := embedding.NewService(&embedding.Config{
		Model:      p.EmbeddingModel,
		APIKey:     p.EmbeddingAPIKey,
		BaseURL:    p.EmbeddingBaseURL,
		Dimensions: p.EmbeddingDimensions,
	})
	if err != nil {
		return nil, err
	}

	generator, err := llm.NewService(&llm.Config{
		Provider: p.LLMProvider,
		Model:    p.LLMModel,
		APIKey:   p.LLMAPIKey,
		BaseURL:  p.LLMBaseURL,
		Timeout:  p.LLMTimeout,
	})
	if err != nil {
		return nil, err
	}

	exporter := metrics.NewExporter()
	embeddingCache := embedding.NewCache()
	retrievalCache := rag.NewRetrievalCache()
	generationCache := llm.NewCache()

	caches := cache.NewManager()
	caches.Register(metrics.CacheEmbedding, embeddingCache)
	caches.Register(metrics.CacheRetrieval, retrievalCache)
	caches.Register(metrics.CacheGeneration, generationCache)

	cachedEmbedder := embedding.NewCached(rawEmbedder, embeddingCache, exporter)
	cachedGenerator := llm.NewCached(generator, generationCache, exporter)

	var index vector.Index
	if p.VectorDSN != "" {
		// pgvector keeps its own persistent index; no rebuild needed.
		index, err = vector.NewPostgresIndex(ctx, p.VectorDSN, p.EmbeddingDimensions)
		if err != nil {
			return nil, err
		}
	} else {
		mem := vector.NewMemoryIndex(p.EmbeddingDimensions)
		if err := rebuildIndex(ctx, st, mem, p.EmbeddingModel); err != nil {
			return nil, err
		}
		index = mem
	}

	retriever := rag.NewRetriever(cachedEmbedder, index, st, retrievalCache, exporter, logger)
	e := &engine{
		store:       st,
		index:       index,
		embedder:    cachedEmbedder,
		rawEmbedder: rawEmbedder,
		generator:   cachedGenerator,
		retriever:   retriever,
		// HyDE embeds a freshly generated passage, so it uses the raw
		// embedder instead of the cached one.
		hyde:       rag.NewHyDE(cachedGenerator, rawEmbedder, retriever, exporter, logger),
		multiQuery: rag.NewMultiQuery(cachedGenerator, retriever, 0, exporter, logger),
		rewrite:    rag.NewRewrite(cachedGenerator, retriever, exporter, logger),
		rerank:     rag.NewRerank(retriever, exporter, logger),
		caches:     caches,
		metrics:    exporter,
		logger:     logger,
	}
	return e, nil
}

// orchestrator builds an answer orchestrator over the named strategy.
func (e *engine) orchestrator(strategy string) (*rag.Orchestrator, error) {
	s, err := e.searcher(strategy)
	if err != nil {
		return nil, err
	}
	return rag.NewOrchestrator(s, e.generator, e.metrics, e.logger), nil
}

// rebuildIndex loads persisted chunk embeddings into the in-memory index.
func rebuildIndex(ctx context.Context, st *store.Store, index vector.Index, model string) error {
	embeddings, err := st.ListChunkEmbeddings(ctx, model)
	if err != nil {
		return err
	}
	for _, e := range embeddings {
		if err := index.Add(ctx, e.ChunkID, e.Embedding); err != nil {
			return errors.Wrapf(err, "chunk %d", e.ChunkID)
		}
	}
	return nil
}

// searcher selects the retrieval strategy by name.
func (e *engine) searcher(strategy string) (rag.Searcher, error) {
	switch strategy {
	case "", "vector":
		return e.retriever, nil
	case "hyde":
		return e.hyde, nil
	case "multi-query":
		return e.multiQuery, nil
	case "rewrite":
		return e.rewrite, nil
	default:
		return nil, errors.Errorf("unknown strategy: %s", strategy)
	}
}

func (e *engine) Close() error {
	if closer, ok := e.index.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			e.logger.Warn("closing vector index", "error", err)
		}
	}
	return e.store.Close()
}
