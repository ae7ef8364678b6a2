package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillctx/quill/store"
)

// chunkSize bounds chunk length in bytes. Splits happen on paragraph
// boundaries when possible.
const chunkSize = 1000

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Add plain-text files to the corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *engine) error {
			for _, path := range args {
				if err := ingestFile(ctx, e, path); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func ingestFile(ctx context.Context, e *engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	filename := filepath.Base(path)
	fileType := strings.TrimPrefix(filepath.Ext(filename), ".")
	doc, err := e.store.CreateDocument(ctx, &store.Document{
		Filename:  filename,
		FileType:  fileType,
		CreatedTs: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	chunks := []*store.Chunk{}
	for i, text := range splitText(string(data), chunkSize) {
		chunks = append(chunks, &store.Chunk{
			DocumentID: doc.ID,
			Content:    text,
			Context:    fmt.Sprintf("File: %s\n%s", filename, text),
			ChunkIndex: i,
			TokenCount: len(strings.Fields(text)),
		})
	}
	if len(chunks) == 0 {
		e.logger.WarnContext(ctx, "file has no content", "filename", filename)
		return nil
	}
	if _, err := e.store.CreateChunks(ctx, chunks); err != nil {
		return err
	}

	// Embed the contextualized text, persist the vectors for index rebuild,
	// and only then flip the embedded flags.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Context
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := e.index.AddBatch(ctx, ids, vecs); err != nil {
		return err
	}
	for i, c := range chunks {
		err := e.store.UpsertChunkEmbedding(ctx, &store.ChunkEmbedding{
			ChunkID:   c.ID,
			Model:     e.embedder.Model(),
			Embedding: vecs[i],
		})
		if err != nil {
			return err
		}
	}
	if err := e.store.SetChunksEmbedded(ctx, ids, true); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "ingested file", "filename", filename, "chunks", len(chunks))
	return nil
}

// splitText breaks text into chunks of at most maxLen bytes, preferring
// paragraph boundaries and falling back to hard splits for oversized
// paragraphs.
func splitText(text string, maxLen int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > maxLen {
			flush()
			chunks = append(chunks, para[:maxLen])
			para = para[maxLen:]
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}
