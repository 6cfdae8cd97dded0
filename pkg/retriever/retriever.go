// Package retriever runs the query-time retrieval pipeline: embed the
// query, ask the vector store for the nearest chunks, convert
// distances to similarity scores and truncate to the requested count.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/detra/semsearch/internal/models"
	"github.com/detra/semsearch/internal/types"
)

// ErrTimeout marks a retrieval that hit its deadline. Callers surface
// it as retryable and must not cache the failed response.
var ErrTimeout = errors.New("retrieval timed out")

type RetrieverConfig struct {
	// MinScore drops results below this similarity. 0 keeps everything
	// the store returns.
	MinScore float64
	// Timeout bounds one full search (query embedding plus store
	// query).
	Timeout time.Duration
}

type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	store    types.VectorStore
}

func NewWithConfig(config RetrieverConfig, embedder types.Embedder, store types.VectorStore) *Retriever {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Retriever{config: config, embedder: embedder, store: store}
}

// Search returns up to maxResults products ranked by similarity.
// maxResults arrives pre-clamped by the transport layer. An empty
// index, or no result clearing MinScore, yields an empty product list,
// never an error.
//
// Scores are 1/(1+d) over cosine distance d: monotonic in true
// similarity and bounded in (0, 1].
func (r *Retriever) Search(ctx context.Context, query string, maxResults int) (models.SearchResult, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return models.SearchResult{}, wrapTimeout(fmt.Errorf("failed to embed query: %w", err))
	}

	chunks, err := r.store.Query(ctx, embedding, maxResults)
	if err != nil {
		return models.SearchResult{}, wrapTimeout(fmt.Errorf("failed to query index: %w", err))
	}

	size, err := r.store.Size(ctx)
	if err != nil {
		return models.SearchResult{}, wrapTimeout(fmt.Errorf("failed to read index size: %w", err))
	}

	products := make([]models.ProductMatch, 0, len(chunks))
	for _, chunk := range chunks {
		score := 1.0 / (1.0 + float64(chunk.Distance))
		if score < r.config.MinScore {
			continue
		}
		products = append(products, models.ProductMatch{
			Product: chunk.Product,
			Score:   score,
		})
	}

	return models.SearchResult{
		Products:       products,
		ElapsedMs:      float64(time.Since(start).Microseconds()) / 1000.0,
		TotalIndexSize: size,
	}, nil
}

func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
