package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/quillctx/quill/store"
)

func (d *DB) CreateDocument(ctx context.Context, doc *store.Document) (*store.Document, error) {
	stmt := `
		INSERT INTO document (filename, file_type, created_ts)
		VALUES (?, ?, ?)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, doc.Filename, doc.FileType, doc.CreatedTs).Scan(&doc.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create document")
	}
	return doc, nil
}

func (d *DB) DeleteDocument(ctx context.Context, documentID int64) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM document WHERE id = ?", documentID); err != nil {
		return errors.Wrapf(err, "failed to delete document %d", documentID)
	}
	return nil
}
