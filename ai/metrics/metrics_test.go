package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterServesMetrics(t *testing.T) {
	e := NewExporter()

	e.ObserveRetrieval("vector", 20*time.Millisecond)
	e.ObserveRetrieval("hyde", 50*time.Millisecond)
	e.ObserveGeneration(time.Second)
	e.CacheHit(CacheEmbedding)
	e.CacheMiss(CacheEmbedding)
	e.CacheHit(CacheRetrieval)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "quill_retrieval_duration_seconds")
	assert.Contains(t, body, `strategy="hyde"`)
	assert.Contains(t, body, "quill_generation_duration_seconds")
	assert.Contains(t, body, `quill_cache_hits_total{cache="embedding"} 1`)
	assert.Contains(t, body, `quill_cache_misses_total{cache="embedding"} 1`)
}

func TestNilExporterIsSafe(t *testing.T) {
	var e *Exporter

	assert.NotPanics(t, func() {
		e.ObserveRetrieval("vector", time.Millisecond)
		e.ObserveGeneration(time.Millisecond)
		e.CacheHit(CacheGeneration)
		e.CacheMiss(CacheGeneration)
	})
}
