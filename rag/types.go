// Package rag implements retrieval over embedded document chunks and the
// strategies layered on top of it: hypothetical-document retrieval,
// multi-query fusion, lexical reranking, and grounded answer generation.
package rag

// SearchOptions narrows retrieval to a subset of the corpus. A nil or empty
// options value searches everything.
type SearchOptions struct {
	DocumentIDs []int64
	FileTypes   []string
}

func (o *SearchOptions) hasFilters() bool {
	return o != nil && (len(o.DocumentIDs) > 0 || len(o.FileTypes) > 0)
}

// SearchResult is one retrieved chunk with its similarity score.
// Score is derived from vector distance as 1/(1+distance), so it falls in
// (0, 1] and higher means more similar.
type SearchResult struct {
	ChunkID      int64   `json:"chunk_id"`
	DocumentID   int64   `json:"document_id"`
	Filename     string  `json:"filename"`
	Content      string  `json:"content"`
	Context      string  `json:"context"`
	Score        float64 `json:"score"`
	PageNumber   *int    `json:"page_number,omitempty"`
	SectionTitle *string `json:"section_title,omitempty"`
}

// RankedResult is a search result that went through lexical reranking.
// FinalScore blends the vector score with the lexical overlap score and is
// what the results are ordered by; Score on the embedded SearchResult is set
// to FinalScore.
type RankedResult struct {
	SearchResult
	OriginalScore float64 `json:"original_score"`
	RerankScore   float64 `json:"rerank_score"`
	FinalScore    float64 `json:"final_score"`
}
