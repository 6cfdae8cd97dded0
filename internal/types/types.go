package types

import (
	"context"

	"github.com/detra/semsearch/internal/models"
)

// Core interfaces

// VectorStore persists product chunks with their embeddings and serves
// nearest-neighbor queries. Upsert replaces any prior entry for the
// same sku; Query returns results ordered by ascending distance. A
// query against an empty store returns an empty slice, and k larger
// than the store size returns everything available.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []models.ProductChunk) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error)
	Size(ctx context.Context) (int, error)
	ModelInfo(ctx context.Context) (*models.IndexInfo, error)
	SetModelInfo(ctx context.Context, info models.IndexInfo) error
	Reset(ctx context.Context) error
	Close() error
}

// Embedder turns text into fixed-dimension dense vectors. A single
// embedder instance is tied to one model; vectors from different
// models must never share an index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
}

// Summarizer produces natural-language text from a query and its
// ranked products. Implementations must handle an empty product list
// with an explicit "nothing found" message rather than inventing
// products.
type Summarizer interface {
	Summarize(ctx context.Context, query string, products []models.ProductMatch) (string, error)
}
