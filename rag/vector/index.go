// Package vector provides the nearest-neighbor index used by retrieval:
// a fixed-dimension store of float32 vectors keyed by integer id, searched
// by ascending distance.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length disagrees with
// the index dimension. This is a programmer error and is never retried.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// TableIDOffset keeps ids of table-derived vectors disjoint from chunk ids
// when both share one index.
const TableIDOffset int64 = 1_000_000

// Entry is one nearest-neighbor hit. Distance is non-negative.
type Entry struct {
	ID       int64
	Distance float64
}

// Index stores fixed-dimension vectors keyed by id.
//
// Search returns the k nearest entries ordered by ascending distance;
// searching an empty index returns an empty slice, not an error. Ties in
// distance have no guaranteed order across implementations; only set
// membership is stable for equidistant entries.
type Index interface {
	Add(ctx context.Context, id int64, vec []float32) error
	AddBatch(ctx context.Context, ids []int64, vecs [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Entry, error)
	Delete(ctx context.Context, id int64) error
	DeleteBatch(ctx context.Context, ids []int64) error
	Count(ctx context.Context) (int, error)

	// Dimension returns the fixed vector dimension set at construction.
	Dimension() int
}
