package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStats(t *testing.T) {
	m := NewManager()

	embeddings := NewLRU[string, []float32](1000, time.Hour)
	generations := NewLRU[string, string](200, 0)
	m.Register("embedding", embeddings)
	m.Register("generation", generations)

	embeddings.Set("a", []float32{1})
	embeddings.Set("b", []float32{2})
	generations.Set("q", "answer")

	stats := m.Stats()
	require.Len(t, stats, 2)

	assert.Equal(t, 2, stats["embedding"].Size)
	assert.Equal(t, 1000, stats["embedding"].MaxSize)
	assert.Equal(t, 3600.0, stats["embedding"].TTLSeconds)

	assert.Equal(t, 1, stats["generation"].Size)
	assert.Equal(t, 200, stats["generation"].MaxSize)
	assert.Equal(t, 0.0, stats["generation"].TTLSeconds)
}

func TestManagerClear(t *testing.T) {
	m := NewManager()

	c := NewLRU[string, string](10, 0)
	m.Register("retrieval", c)
	c.Set("a", "1")
	c.Set("b", "2")

	cleared := m.Clear()
	assert.Equal(t, map[string]int{"retrieval": 2}, cleared)
	assert.Equal(t, 0, c.Len())
}
