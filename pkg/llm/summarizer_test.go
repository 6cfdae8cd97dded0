package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detra/semsearch/internal/models"
)

func match(sku, name string, price float64) models.ProductMatch {
	return models.ProductMatch{
		Product: models.Product{SKU: sku, Name: name, FinalPrice: &price},
		Score:   0.9,
	}
}

func TestTemplateSummarizer_EmptyResults(t *testing.T) {
	var s TemplateSummarizer

	text, err := s.Summarize(context.Background(), "underwater basket", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "couldn't find relevant products")
	assert.Contains(t, text, "rephrasing")
}

func TestTemplateSummarizer_EnumeratesTopThree(t *testing.T) {
	var s TemplateSummarizer

	products := []models.ProductMatch{
		match("A1", "UltraWide Monitor", 399.99),
		match("B2", "Office Chair", 249.00),
		match("C3", "Desk Lamp", 39.99),
		match("D4", "Footrest", 29.99),
	}
	text, err := s.Summarize(context.Background(), "home office setup", products)
	require.NoError(t, err)

	assert.Contains(t, text, "For 'home office setup'")
	assert.Contains(t, text, "UltraWide Monitor (SKU A1), around $399.99")
	assert.Contains(t, text, "Office Chair (SKU B2), around $249.00")
	assert.Contains(t, text, "Desk Lamp (SKU C3)")
	assert.NotContains(t, text, "Footrest", "only the top three are listed")
	assert.Equal(t, 3, strings.Count(text, "- "))
	assert.Contains(t, text, "Tip:")
}

func TestTemplateSummarizer_MissingPrice(t *testing.T) {
	var s TemplateSummarizer

	products := []models.ProductMatch{
		{Product: models.Product{SKU: "X1", Name: "Mystery Gadget"}},
	}
	text, err := s.Summarize(context.Background(), "gadgets", products)
	require.NoError(t, err)
	assert.Contains(t, text, "around N/A")
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, string, []models.ProductMatch) (string, error) {
	return "", errors.New("model server down")
}

func TestFallbackSummarizer_DegradesToTemplate(t *testing.T) {
	s := &fallbackSummarizer{primary: failingSummarizer{}}

	products := []models.ProductMatch{match("A1", "UltraWide Monitor", 399.99)}
	text, err := s.Summarize(context.Background(), "monitor", products)
	require.NoError(t, err, "generative failure must not surface")
	assert.Contains(t, text, "UltraWide Monitor")
}

type fixedSummarizer struct{ text string }

func (f fixedSummarizer) Summarize(context.Context, string, []models.ProductMatch) (string, error) {
	return f.text, nil
}

func TestFallbackSummarizer_PassesThroughSuccess(t *testing.T) {
	s := &fallbackSummarizer{primary: fixedSummarizer{text: "generated summary"}}

	text, err := s.Summarize(context.Background(), "monitor", nil)
	require.NoError(t, err)
	assert.Equal(t, "generated summary", text)
}

func TestNewSummarizer_Providers(t *testing.T) {
	s, err := NewSummarizer(SummarizerConfig{Provider: "template"})
	require.NoError(t, err)
	assert.IsType(t, &TemplateSummarizer{}, s)

	s, err = NewSummarizer(SummarizerConfig{})
	require.NoError(t, err)
	assert.IsType(t, &TemplateSummarizer{}, s)

	_, err = NewSummarizer(SummarizerConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestUserPrompt(t *testing.T) {
	products := []models.ProductMatch{match("A1", "UltraWide Monitor", 399.99)}
	prompt := userPrompt("wide screen", products)

	assert.Contains(t, prompt, "User query: wide screen")
	assert.Contains(t, prompt, "1. UltraWide Monitor (SKU: A1)")
	assert.Contains(t, prompt, "Price: $399.99")
}
