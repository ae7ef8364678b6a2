// Package sqlite implements store.Driver on SQLite. It is the default
// backend: documents, chunks and chunk embeddings live in a single local
// file, and embeddings are loaded back at startup to rebuild the in-memory
// vector index.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/quillctx/quill/store"
)

type DB struct {
	db *sql.DB
}

// NewDB opens the SQLite database at the given DSN.
//
// Pragmas follow the modernc.org/sqlite convention of `_pragma=` prefixes.
// WAL journal mode plus a single pooled connection is the recommended setup
// for a local single-writer file.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS document (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunk (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES document (id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	chunk_index INTEGER NOT NULL,
	page_number INTEGER,
	section_title TEXT,
	token_count INTEGER NOT NULL DEFAULT 0,
	has_embedding INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chunk_document_id ON chunk (document_id);

CREATE TABLE IF NOT EXISTS chunk_embedding (
	chunk_id INTEGER PRIMARY KEY REFERENCES chunk (id) ON DELETE CASCADE,
	model TEXT NOT NULL,
	embedding BLOB NOT NULL
);
`

// Migrate creates the schema. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}

var _ store.Driver = (*DB)(nil)
