package vector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
)

// PostgresIndex is a pgvector-backed Index for corpora that outgrow memory.
// Distance uses the <-> (L2) operator, matching MemoryIndex semantics.
type PostgresIndex struct {
	db  *sql.DB
	dim int
}

// NewPostgresIndex opens a Postgres-backed index, creating the extension
// and table if they do not exist.
func NewPostgresIndex(ctx context.Context, dsn string, dimension int) (*PostgresIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}

	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, errors.Wrap(err, "failed to create vector extension")
	}

	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunk_vector (
			id BIGINT PRIMARY KEY,
			embedding VECTOR(%d) NOT NULL
		)`, dimension)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, errors.Wrap(err, "failed to create chunk_vector table")
	}

	return &PostgresIndex{db: db, dim: dimension}, nil
}

func (x *PostgresIndex) Dimension() int {
	return x.dim
}

func (x *PostgresIndex) Close() error {
	return x.db.Close()
}

func (x *PostgresIndex) Add(ctx context.Context, id int64, vec []float32) error {
	return x.AddBatch(ctx, []int64{id}, [][]float32{vec})
}

func (x *PostgresIndex) AddBatch(ctx context.Context, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("ids/vectors length mismatch: %d != %d", len(ids), len(vecs))
	}
	for i, vec := range vecs {
		if len(vec) != x.dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				ErrDimensionMismatch, ids[i], len(vec), x.dim)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	stmt := `
		INSERT INTO chunk_vector (id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding
	`
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, stmt, id, pgvector.NewVector(vecs[i])); err != nil {
			return errors.Wrapf(err, "failed to upsert vector %d", id)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit vectors")
}

func (x *PostgresIndex) Search(ctx context.Context, query []float32, k int) ([]Entry, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 {
		return []Entry{}, nil
	}

	stmt := `
		SELECT id, embedding <-> $1 AS distance
		FROM chunk_vector
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	vec := pgvector.NewVector(query)
	rows, err := x.db.QueryContext(ctx, stmt, vec, k)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search vectors")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Distance); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search row")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (x *PostgresIndex) Delete(ctx context.Context, id int64) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM chunk_vector WHERE id = $1`, id)
	return errors.Wrap(err, "failed to delete vector")
}

func (x *PostgresIndex) DeleteBatch(ctx context.Context, ids []int64) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM chunk_vector WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "failed to delete vectors")
}

func (x *PostgresIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_vector`).Scan(&count)
	return count, errors.Wrap(err, "failed to count vectors")
}
