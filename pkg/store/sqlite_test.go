package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detra/semsearch/internal/models"
	"github.com/detra/semsearch/pkg/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(store.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "index.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func chunk(sku, text string, embedding []float32) models.ProductChunk {
	return models.ProductChunk{
		SKU:       sku,
		Text:      text,
		Product:   models.Product{SKU: sku, Name: text},
		Embedding: embedding,
	}
}

func TestSQLiteStore_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []models.ProductChunk{
		chunk("A1", "UltraWide Monitor", []float32{1, 0, 0}),
		chunk("B2", "Office Chair", []float32{0, 1, 0}),
		chunk("C3", "Desk Lamp", []float32{0.9, 0.1, 0}),
	}))

	got, err := s.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A1", got[0].Product.SKU)
	assert.Equal(t, "C3", got[1].Product.SKU)
	assert.Less(t, got[0].Distance, got[1].Distance)
}

func TestSQLiteStore_KLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []models.ProductChunk{
		chunk("A1", "Monitor", []float32{1, 0}),
	}))

	got, err := s.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStore_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLiteStore_UpsertReplacesBySKU(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []models.ProductChunk{
		chunk("A1", "Monitor", []float32{1, 0}),
	}))
	require.NoError(t, s.Upsert(ctx, []models.ProductChunk{
		chunk("A1", "Monitor v2", []float32{0, 1}),
	}))

	n, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-ingesting a sku must not grow the index")

	got, err := s.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Monitor v2", got[0].Product.Name)
}

func TestSQLiteStore_SplitProductCountsOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []models.ProductChunk{
		chunk("A1", "Monitor part one", []float32{1, 0}),
		chunk("A1", "Monitor part two", []float32{0.8, 0.2}),
		chunk("B2", "Chair", []float32{0, 1}),
	}))

	n, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "size counts products, not chunks")

	got, err := s.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2, "a split product yields one result")
	assert.Equal(t, "A1", got[0].Product.SKU)
}

func TestSQLiteStore_ModelInfoRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	info, err := s.ModelInfo(ctx)
	require.NoError(t, err)
	assert.Nil(t, info, "a fresh index has no recorded model")

	require.NoError(t, s.SetModelInfo(ctx, models.IndexInfo{
		Model:     "ollama/nomic-embed-text",
		Dimension: 768,
	}))

	info, err = s.ModelInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "ollama/nomic-embed-text", info.Model)
	assert.Equal(t, 768, info.Dimension)
	assert.Equal(t, "cosine", info.Metric)
	assert.False(t, info.BuiltAt.IsZero())
}

func TestVerifyModel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Never-built index passes.
	require.NoError(t, store.VerifyModel(ctx, s, "ollama/nomic-embed-text", 768))

	require.NoError(t, s.SetModelInfo(ctx, models.IndexInfo{
		Model:     "ollama/nomic-embed-text",
		Dimension: 768,
	}))

	assert.NoError(t, store.VerifyModel(ctx, s, "ollama/nomic-embed-text", 768))

	err := store.VerifyModel(ctx, s, "openai/text-embedding-3-small", 768)
	assert.ErrorIs(t, err, store.ErrModelMismatch)

	err = store.VerifyModel(ctx, s, "ollama/nomic-embed-text", 1536)
	assert.ErrorIs(t, err, store.ErrModelMismatch)
}

func TestSQLiteStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []models.ProductChunk{
		chunk("A1", "Monitor", []float32{1, 0}),
	}))
	require.NoError(t, s.SetModelInfo(ctx, models.IndexInfo{Model: "m", Dimension: 2}))

	require.NoError(t, s.Reset(ctx))

	n, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	info, err := s.ModelInfo(ctx)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestSQLiteStore_ZeroK(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, []models.ProductChunk{
		chunk("A1", "Monitor", []float32{1, 0}),
	}))

	got, err := s.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
