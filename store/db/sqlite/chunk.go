package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/quillctx/quill/store"
)

func (d *DB) CreateChunks(ctx context.Context, chunks []*store.Chunk) ([]*store.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	stmt := `
		INSERT INTO chunk (document_id, content, context, chunk_index, page_number, section_title, token_count, has_embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	for _, chunk := range chunks {
		err := tx.QueryRowContext(ctx, stmt,
			chunk.DocumentID,
			chunk.Content,
			chunk.Context,
			chunk.ChunkIndex,
			chunk.PageNumber,
			chunk.SectionTitle,
			chunk.TokenCount,
			chunk.HasEmbedding,
		).Scan(&chunk.ID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create chunk")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit tx")
	}
	return chunks, nil
}

func (d *DB) SetChunksEmbedded(ctx context.Context, chunkIDs []int64, embedded bool) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, 0, len(chunkIDs)+1)
	args = append(args, embedded)
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	stmt := fmt.Sprintf("UPDATE chunk SET has_embedding = ? WHERE id IN (%s)", strings.Join(placeholders, ", "))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update chunk embedding flags")
	}
	return nil
}

func (d *DB) FindChunks(ctx context.Context, find *store.FindChunk) ([]*store.ChunkWithDocument, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.IDs; len(v) > 0 {
		placeholders := make([]string, len(v))
		for i, id := range v {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("chunk.id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if v := find.DocumentIDs; len(v) > 0 {
		placeholders := make([]string, len(v))
		for i, id := range v {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("chunk.document_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if v := find.FileTypes; len(v) > 0 {
		placeholders := make([]string, len(v))
		for i, ft := range v {
			placeholders[i] = "?"
			args = append(args, ft)
		}
		where = append(where, fmt.Sprintf("document.file_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if find.OnlyEmbedded {
		where = append(where, "chunk.has_embedding = 1")
	}

	query := `
		SELECT
			chunk.id,
			chunk.document_id,
			chunk.content,
			chunk.context,
			chunk.chunk_index,
			chunk.page_number,
			chunk.section_title,
			chunk.token_count,
			chunk.has_embedding,
			document.filename,
			document.file_type
		FROM chunk
		JOIN document ON document.id = chunk.document_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY chunk.document_id, chunk.chunk_index`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query chunks")
	}
	defer rows.Close()

	list := []*store.ChunkWithDocument{}
	for rows.Next() {
		chunk := &store.ChunkWithDocument{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Content,
			&chunk.Context,
			&chunk.ChunkIndex,
			&chunk.PageNumber,
			&chunk.SectionTitle,
			&chunk.TokenCount,
			&chunk.HasEmbedding,
			&chunk.Filename,
			&chunk.FileType,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan chunk")
		}
		list = append(list, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chunks")
	}
	return list, nil
}
