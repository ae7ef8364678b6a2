package sqlite

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/quillctx/quill/store"
)

// float32ArrayToBLOB encodes a vector as packed little-endian float32 bytes.
func float32ArrayToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// blobToFloat32Array decodes a BLOB written by float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.Errorf("invalid embedding blob length: %d", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec, nil
}

func (d *DB) UpsertChunkEmbedding(ctx context.Context, embedding *store.ChunkEmbedding) error {
	stmt := `
		INSERT INTO chunk_embedding (chunk_id, model, embedding)
		VALUES (?, ?, ?)
		ON CONFLICT (chunk_id) DO UPDATE SET model = excluded.model, embedding = excluded.embedding`
	if _, err := d.db.ExecContext(ctx, stmt, embedding.ChunkID, embedding.Model, float32ArrayToBLOB(embedding.Embedding)); err != nil {
		return errors.Wrapf(err, "failed to upsert embedding for chunk %d", embedding.ChunkID)
	}
	return nil
}

// ListChunkEmbeddings returns all stored embeddings for the given model.
// An empty model lists every embedding regardless of model.
func (d *DB) ListChunkEmbeddings(ctx context.Context, model string) ([]*store.ChunkEmbedding, error) {
	query := "SELECT chunk_id, model, embedding FROM chunk_embedding"
	args := []any{}
	if model != "" {
		query += " WHERE model = ?"
		args = append(args, model)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query chunk embeddings")
	}
	defer rows.Close()

	list := []*store.ChunkEmbedding{}
	for rows.Next() {
		var blob []byte
		embedding := &store.ChunkEmbedding{}
		if err := rows.Scan(&embedding.ChunkID, &embedding.Model, &blob); err != nil {
			return nil, errors.Wrap(err, "failed to scan chunk embedding")
		}
		vec, err := blobToFloat32Array(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "chunk %d", embedding.ChunkID)
		}
		embedding.Embedding = vec
		list = append(list, embedding)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chunk embeddings")
	}
	return list, nil
}
