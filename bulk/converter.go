// Package bulk coordinates document conversion jobs: bounded-concurrency
// batch processing, per-page and fixed-size text streaming, and the progress
// event sequence emitted around a single conversion.
package bulk

import "context"

// Format selects the export format of a conversion.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Document is a converted document ready for export.
type Document interface {
	// Export renders the whole document in the given format.
	Export(format Format) (string, error)

	// PageCount reports how many pages the document has.
	PageCount() int

	// ExportPage renders a single page in the given format. Pages are
	// numbered from 1.
	ExportPage(number int, format Format) (string, error)
}

// Converter turns raw file bytes into a Document. Implementations wrap the
// actual conversion backend; this package only orchestrates them.
type Converter interface {
	Convert(ctx context.Context, filename string, data []byte) (Document, error)
}
