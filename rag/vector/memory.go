package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an exact nearest-neighbor index held in memory, using
// Euclidean (L2) distance. Vectors are kept in insertion order, which is
// also the tie-break order for equal distances.
type MemoryIndex struct {
	mu   sync.RWMutex
	dim  int
	ids  []int64
	vecs [][]float32
	pos  map[int64]int
}

// NewMemoryIndex creates an empty index with the given fixed dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dim: dimension,
		pos: make(map[int64]int),
	}
}

func (x *MemoryIndex) Dimension() int {
	return x.dim
}

func (x *MemoryIndex) Add(_ context.Context, id int64, vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), x.dim)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.put(id, vec)
	return nil
}

func (x *MemoryIndex) AddBatch(_ context.Context, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("ids/vectors length mismatch: %d != %d", len(ids), len(vecs))
	}
	for i, vec := range vecs {
		if len(vec) != x.dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				ErrDimensionMismatch, ids[i], len(vec), x.dim)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, id := range ids {
		x.put(id, vecs[i])
	}
	return nil
}

// put inserts or replaces a vector. Must be called with the lock held.
func (x *MemoryIndex) put(id int64, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)

	if i, ok := x.pos[id]; ok {
		x.vecs[i] = stored
		return
	}
	x.pos[id] = len(x.ids)
	x.ids = append(x.ids, id)
	x.vecs = append(x.vecs, stored)
}

func (x *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]Entry, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), x.dim)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.ids) == 0 || k <= 0 {
		return []Entry{}, nil
	}

	entries := make([]Entry, len(x.ids))
	for i, id := range x.ids {
		entries[i] = Entry{ID: id, Distance: l2Distance(query, x.vecs[i])}
	}

	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Distance < entries[j].Distance
	})

	if k < len(entries) {
		entries = entries[:k]
	}
	return entries, nil
}

func (x *MemoryIndex) Delete(_ context.Context, id int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.remove(id)
	return nil
}

func (x *MemoryIndex) DeleteBatch(_ context.Context, ids []int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		x.remove(id)
	}
	return nil
}

// remove deletes a vector preserving insertion order of the remainder.
// Must be called with the lock held.
func (x *MemoryIndex) remove(id int64) {
	i, ok := x.pos[id]
	if !ok {
		return
	}
	x.ids = append(x.ids[:i], x.ids[i+1:]...)
	x.vecs = append(x.vecs[:i], x.vecs[i+1:]...)
	delete(x.pos, id)
	for j := i; j < len(x.ids); j++ {
		x.pos[x.ids[j]] = j
	}
}

func (x *MemoryIndex) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids), nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
