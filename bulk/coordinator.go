package bulk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds how many conversions run at once.
const DefaultConcurrency = 4

// Item is one file submitted for batch conversion.
type Item struct {
	Filename string
	Data     []byte
}

// Result is the outcome for one item. Status is "success" or "error"; a
// failed item carries the error text and no content.
type Result struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Coordinator runs batch conversions with bounded concurrency. One item
// failing never aborts the rest of the batch.
type Coordinator struct {
	converter   Converter
	concurrency int64
	logger      *slog.Logger
}

// NewCoordinator creates a Coordinator. concurrency <= 0 selects the
// default.
func NewCoordinator(converter Converter, concurrency int, logger *slog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		converter:   converter,
		concurrency: int64(concurrency),
		logger:      logger,
	}
}

// ProcessAll converts every item and returns one result per item, in
// submission order. Cancellation stops not-yet-started items; those are
// recorded as errors alongside items that failed outright.
func (c *Coordinator) ProcessAll(ctx context.Context, items []Item, format Format) []Result {
	results := make([]Result, len(items))
	sem := semaphore.NewWeighted(c.concurrency)

	var wg sync.WaitGroup
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{Filename: item.Filename, Status: "error", Error: err.Error()}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = c.processOne(ctx, item, format)
		}()
	}
	wg.Wait()
	return results
}

func (c *Coordinator) processOne(ctx context.Context, item Item, format Format) Result {
	start := time.Now()

	doc, err := c.converter.Convert(ctx, item.Filename, item.Data)
	if err != nil {
		c.logger.WarnContext(ctx, "conversion failed", "filename", item.Filename, "error", err)
		return Result{Filename: item.Filename, Status: "error", Error: err.Error()}
	}

	content, err := doc.Export(format)
	if err != nil {
		c.logger.WarnContext(ctx, "export failed", "filename", item.Filename, "error", err)
		return Result{Filename: item.Filename, Status: "error", Error: err.Error()}
	}

	c.logger.DebugContext(ctx, "conversion done",
		"filename", item.Filename,
		"duration_ms", time.Since(start).Milliseconds())
	return Result{Filename: item.Filename, Status: "success", Content: content}
}
