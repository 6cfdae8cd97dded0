// Package store provides the vector index backends. The default
// backend keeps the catalog in a local SQLite file; a pgvector backend
// is available for deployments that already run Postgres. Both key
// entries by product sku, so re-ingesting a catalog replaces rows
// instead of accumulating duplicates.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/detra/semsearch/internal/models"
	"github.com/detra/semsearch/internal/types"
)

// ErrModelMismatch means the index on disk was built with a different
// embedding model than the one configured. Serving queries across that
// boundary would compare incompatible vector spaces, so startup must
// refuse instead.
var ErrModelMismatch = errors.New("index embedding model mismatch")

const metricCosine = "cosine"

// VerifyModel checks a store's recorded model identity against the
// configured embedder. A store with no recorded identity (never built)
// passes; a recorded mismatch is fatal to the caller.
func VerifyModel(ctx context.Context, s types.VectorStore, modelID string, dimension int) error {
	info, err := s.ModelInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index metadata: %w", err)
	}
	if info == nil {
		return nil
	}
	if info.Model != modelID {
		return fmt.Errorf("%w: index built with %q, configured %q", ErrModelMismatch, info.Model, modelID)
	}
	if info.Dimension != dimension {
		return fmt.Errorf("%w: index dimension %d, configured %d", ErrModelMismatch, info.Dimension, dimension)
	}
	return nil
}

// cosineDistance returns 1 - cosine similarity, in [0, 2]. Mismatched
// or zero vectors are treated as maximally distant.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 2
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	sim := dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
	return 1 - sim
}

// encodeVector packs an embedding as little-endian float32 bytes for
// BLOB storage.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding blob: %d bytes", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// dedupeBySKU keeps the closest chunk per sku, preserving ascending
// distance order. Split products contribute one result, not several.
func dedupeBySKU(chunks []models.ScoredChunk) []models.ScoredChunk {
	seen := make(map[string]bool, len(chunks))
	out := chunks[:0]
	for _, c := range chunks {
		if seen[c.Product.SKU] {
			continue
		}
		seen[c.Product.SKU] = true
		out = append(out, c)
	}
	return out
}
