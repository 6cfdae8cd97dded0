package processor

import (
	"strings"

	"github.com/detra/semsearch/internal/models"
)

type ProcessorConfig struct {
	// MaxChunkChars splits a product's text into multiple chunks when
	// it grows past this length. 0 keeps one chunk per product, which
	// is adequate while catalog entries stay short.
	MaxChunkChars int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	return Processor{config: config}
}

// BuildChunks turns each product into its retrievable chunks. With the
// default policy this is exactly one chunk per product, keyed by sku.
func (p *Processor) BuildChunks(products []models.Product) []models.ProductChunk {
	var chunks []models.ProductChunk

	for _, product := range products {
		text := ChunkText(product)
		if p.config.MaxChunkChars > 0 && len(text) > p.config.MaxChunkChars {
			for _, part := range splitText(text, p.config.MaxChunkChars) {
				chunks = append(chunks, models.ProductChunk{
					SKU:     product.SKU,
					Text:    part,
					Product: product,
				})
			}
			continue
		}
		chunks = append(chunks, models.ProductChunk{
			SKU:     product.SKU,
			Text:    text,
			Product: product,
		})
	}

	return chunks
}

// ChunkText concatenates name, description and flattened features into
// the single blob that gets embedded. Absent fields are omitted, never
// rendered as a literal placeholder.
func ChunkText(p models.Product) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.Features) > 0 {
		parts = append(parts, "Features: "+strings.Join(p.Features, "; "))
	}
	return strings.Join(parts, ". ")
}

// splitText breaks text on word boundaries into pieces no longer than
// max characters. A single word longer than max becomes its own piece.
func splitText(text string, max int) []string {
	words := strings.Fields(text)
	var pieces []string
	var current strings.Builder

	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > max {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}
