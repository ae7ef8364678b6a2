// Package store provides read access to persisted documents and chunks,
// plus the ingestion-side write path that keeps chunk records and their
// vectors in lockstep.
package store

import "context"

// Document is an ingested source file.
type Document struct {
	ID        int64
	Filename  string
	FileType  string
	CreatedTs int64
}

// Chunk is a bounded span of a document's content, sized for embedding and
// retrieval. The retrieval core only reads chunks.
//
// Invariant: HasEmbedding is true iff a vector for ID exists in the vector
// index. A chunk is never returned as a search hit unless both hold.
type Chunk struct {
	ID           int64
	DocumentID   int64
	Content      string
	Context      string // content plus surrounding metadata, used for embedding and citation
	ChunkIndex   int
	PageNumber   *int
	SectionTitle *string
	TokenCount   int
	HasEmbedding bool
}

// ChunkWithDocument is a chunk joined with its owning document.
type ChunkWithDocument struct {
	Chunk
	Filename string
	FileType string
}

// ChunkEmbedding persists a chunk's vector so the in-memory index can be
// rebuilt at startup.
type ChunkEmbedding struct {
	ChunkID   int64
	Model     string
	Embedding []float32
}

// FindChunk filters chunk lookups. All fields are conjunctive.
type FindChunk struct {
	IDs          []int64
	DocumentIDs  []int64
	FileTypes    []string
	OnlyEmbedded bool
}

// Driver is the persistence interface implemented per database backend.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	// Read path, used by retrieval.
	FindChunks(ctx context.Context, find *FindChunk) ([]*ChunkWithDocument, error)

	// Write path, owned by ingestion.
	CreateDocument(ctx context.Context, doc *Document) (*Document, error)
	CreateChunks(ctx context.Context, chunks []*Chunk) ([]*Chunk, error)
	SetChunksEmbedded(ctx context.Context, chunkIDs []int64, embedded bool) error
	UpsertChunkEmbedding(ctx context.Context, embedding *ChunkEmbedding) error
	ListChunkEmbeddings(ctx context.Context, model string) ([]*ChunkEmbedding, error)
	DeleteDocument(ctx context.Context, documentID int64) error
}

// Store wraps a Driver. It exists so callers hold one handle whose backend
// is selected by configuration.
type Store struct {
	driver Driver
}

// New creates a Store on the given driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) FindChunks(ctx context.Context, find *FindChunk) ([]*ChunkWithDocument, error) {
	return s.driver.FindChunks(ctx, find)
}

func (s *Store) CreateDocument(ctx context.Context, doc *Document) (*Document, error) {
	return s.driver.CreateDocument(ctx, doc)
}

func (s *Store) CreateChunks(ctx context.Context, chunks []*Chunk) ([]*Chunk, error) {
	return s.driver.CreateChunks(ctx, chunks)
}

func (s *Store) SetChunksEmbedded(ctx context.Context, chunkIDs []int64, embedded bool) error {
	return s.driver.SetChunksEmbedded(ctx, chunkIDs, embedded)
}

func (s *Store) UpsertChunkEmbedding(ctx context.Context, embedding *ChunkEmbedding) error {
	return s.driver.UpsertChunkEmbedding(ctx, embedding)
}

func (s *Store) ListChunkEmbeddings(ctx context.Context, model string) ([]*ChunkEmbedding, error) {
	return s.driver.ListChunkEmbeddings(ctx, model)
}

func (s *Store) DeleteDocument(ctx context.Context, documentID int64) error {
	return s.driver.DeleteDocument(ctx, documentID)
}
