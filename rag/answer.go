package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillctx/quill/ai/llm"
	"github.com/quillctx/quill/ai/metrics"
)

// NoInformationAnswer is returned when retrieval comes back empty. No
// generation call is made in that case.
const NoInformationAnswer = "I couldn't find any relevant information to answer your question."

// Searcher is a retrieval strategy usable by the orchestrator: the plain
// retriever, HyDE, or multi-query fusion.
type Searcher interface {
	Search(ctx context.Context, query string, k int, opts *SearchOptions) ([]*SearchResult, error)
}

// StreamingGenerationService extends GenerationService with token streaming.
type StreamingGenerationService interface {
	GenerationService
	ChatStream(ctx context.Context, messages []llm.Message) (<-chan string, <-chan error)
}

// Answer is a grounded answer with the sources it cites.
type Answer struct {
	Answer  string          `json:"answer"`
	Sources []*SearchResult `json:"sources"`
}

// Orchestrator ties a retrieval strategy to grounded generation.
type Orchestrator struct {
	searcher  Searcher
	generator StreamingGenerationService
	metrics   *metrics.Exporter
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator over the given strategy and
// generator.
func NewOrchestrator(searcher Searcher, generator StreamingGenerationService, m *metrics.Exporter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		searcher:  searcher,
		generator: generator,
		metrics:   m,
		logger:    logger,
	}
}

// Answer retrieves context for the question and generates a grounded answer.
// Sources are returned in retrieval rank order, which is also the order the
// passages appear in the generation context.
func (o *Orchestrator) Answer(ctx context.Context, question string, k int, opts *SearchOptions) (*Answer, error) {
	sources, err := o.searcher.Search(ctx, question, k, opts)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &Answer{Answer: NoInformationAnswer, Sources: []*SearchResult{}}, nil
	}

	start := time.Now()
	reply, err := o.generator.Chat(ctx, buildAnswerMessages(question, sources))
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveGeneration(time.Since(start))
	o.logger.DebugContext(ctx, "answer generated",
		"sources", len(sources),
		"duration_ms", time.Since(start).Milliseconds())

	return &Answer{Answer: reply, Sources: sources}, nil
}

// AnswerStream retrieves context synchronously, then streams answer tokens.
// Sources are resolved before any token is produced so callers can emit
// them first. On empty retrieval the token channel yields the fixed
// no-information answer as a single token.
func (o *Orchestrator) AnswerStream(ctx context.Context, question string, k int, opts *SearchOptions) (<-chan string, <-chan error, []*SearchResult, error) {
	sources, err := o.searcher.Search(ctx, question, k, opts)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(sources) == 0 {
		contentCh := make(chan string, 1)
		errCh := make(chan error, 1)
		contentCh <- NoInformationAnswer
		close(contentCh)
		close(errCh)
		return contentCh, errCh, []*SearchResult{}, nil
	}

	contentCh, errCh := o.generator.ChatStream(ctx, buildAnswerMessages(question, sources))
	return contentCh, errCh, sources, nil
}
