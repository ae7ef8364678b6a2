package bulk

import (
	"context"
	"encoding/json"
	"io"
)

// StreamChunkSize is the slice size for plain text streaming.
const StreamChunkSize = 4096

// pageLine is one NDJSON record of StreamPages.
type pageLine struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// StreamPages writes one NDJSON line per page, in page order, with each
// page rendered in the requested format. It checks for cancellation between
// pages so a consumer that goes away stops the stream promptly.
func StreamPages(ctx context.Context, doc Document, format Format, w io.Writer) error {
	enc := json.NewEncoder(w)
	for number := 1; number <= doc.PageCount(); number++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := doc.ExportPage(number, format)
		if err != nil {
			return err
		}
		if err := enc.Encode(pageLine{Page: number, Content: content}); err != nil {
			return err
		}
	}
	return nil
}

// StreamText writes the text in fixed-size slices with a cancellation check
// between slices. The final slice may be shorter.
func StreamText(ctx context.Context, text string, w io.Writer) error {
	for off := 0; off < len(text); off += StreamChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + StreamChunkSize
		if end > len(text) {
			end = len(text)
		}
		if _, err := io.WriteString(w, text[off:end]); err != nil {
			return err
		}
	}
	return nil
}
