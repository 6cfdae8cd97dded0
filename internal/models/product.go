package models

import "time"

// Product is one normalized catalog row. Products are immutable once
// loaded; re-ingesting the same sku replaces the prior index entry.
type Product struct {
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Category    []string `json:"category,omitempty"`
	URI         string   `json:"uri,omitempty"`
	MSRP        *float64 `json:"msrp,omitempty"`
	FinalPrice  *float64 `json:"final_price,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	InStock     bool     `json:"in_stock"`
}

// Price returns the display price: final price when present, MSRP otherwise.
// The second return is false when the row carried no parseable price.
func (p Product) Price() (float64, bool) {
	if p.FinalPrice != nil {
		return *p.FinalPrice, true
	}
	if p.MSRP != nil {
		return *p.MSRP, true
	}
	return 0, false
}

// ProductChunk is the retrievable unit: one text blob per product plus
// the metadata needed to render a result without a second lookup.
// Chunk identity is the product sku.
type ProductChunk struct {
	SKU       string
	Text      string
	Product   Product
	Embedding []float32
}

// ScoredChunk is a chunk returned from a vector store query together
// with its raw distance from the query embedding.
type ScoredChunk struct {
	Product  Product
	Distance float32
}

// ProductMatch is a ranked product as exposed to callers, with the
// normalized similarity score attached.
type ProductMatch struct {
	Product
	Score float64 `json:"similarity_score"`
}

// SearchMetadata describes how a search was executed.
type SearchMetadata struct {
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	CacheHit        bool    `json:"cache_hit"`
	TotalIndexSize  int     `json:"total_index_size"`
	K               int     `json:"k"`
	ResultsCount    int     `json:"results_count"`
}

// SearchResult is the transient per-query result of the retrieval
// pipeline. Scores are non-increasing in rank order.
type SearchResult struct {
	Products       []ProductMatch
	ElapsedMs      float64
	TotalIndexSize int
}

// SearchResponse is the full response returned to the transport layer
// and memoized by the response cache.
type SearchResponse struct {
	Products []ProductMatch `json:"products"`
	Summary  string         `json:"summary"`
	Metadata SearchMetadata `json:"metadata"`
}

// IndexInfo is persisted alongside an index so a store built with one
// embedding model is never queried with another.
type IndexInfo struct {
	Model     string
	Dimension int
	Metric    string
	BuiltAt   time.Time
}
