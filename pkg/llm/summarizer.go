package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/detra/semsearch/internal/models"
)

const systemPrompt = "You are a helpful shopping assistant. Given a user query and a set of " +
	"relevant products, write a concise, helpful recommendation. " +
	"Be practical, cite specific model names, and end with 1-2 tips."

// SummarizerConfig configures a generative summarizer backend.
type SummarizerConfig struct {
	Provider    string // "ollama", "openai" or "template"
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Summarizer produces natural-language text from a query and its
// ranked products.
type Summarizer interface {
	Summarize(ctx context.Context, query string, products []models.ProductMatch) (string, error)
}

// NewSummarizer selects the summarizer backend once at startup. The
// returned summarizer already carries the deterministic fallback: a
// generative failure degrades to the template output instead of
// propagating, so a search never fails because generation is down.
func NewSummarizer(config SummarizerConfig) (Summarizer, error) {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Temperature == 0 {
		config.Temperature = 0.3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	switch config.Provider {
	case "", "template":
		return &TemplateSummarizer{}, nil
	case "ollama":
		engine, err := newOllamaSummarizer(config)
		if err != nil {
			return nil, err
		}
		return &fallbackSummarizer{primary: engine}, nil
	case "openai":
		engine, err := newOpenAISummarizer(config)
		if err != nil {
			return nil, err
		}
		return &fallbackSummarizer{primary: engine}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", config.Provider)
	}
}

// fallbackSummarizer recovers from generative failures locally.
type fallbackSummarizer struct {
	primary  Summarizer
	fallback TemplateSummarizer
}

func (f *fallbackSummarizer) Summarize(ctx context.Context, query string, products []models.ProductMatch) (string, error) {
	text, err := f.primary.Summarize(ctx, query, products)
	if err != nil {
		log.Printf("warning: summarizer failed, falling back to template: %v", err)
		return f.fallback.Summarize(ctx, query, products)
	}
	return text, nil
}

// OllamaSummarizer generates recommendations through a local Ollama model.
type OllamaSummarizer struct {
	config SummarizerConfig
	llm    llms.Model
}

func newOllamaSummarizer(config SummarizerConfig) (*OllamaSummarizer, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	model, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &OllamaSummarizer{config: config, llm: model}, nil
}

func (s *OllamaSummarizer) Summarize(ctx context.Context, query string, products []models.ProductMatch) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt(query, products)),
	}

	resp, err := s.llm.GenerateContent(ctx, content,
		llms.WithTemperature(s.config.Temperature),
		llms.WithMaxTokens(s.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("summarize: empty response from LLM")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// OpenAISummarizer generates recommendations through the OpenAI API.
type OpenAISummarizer struct {
	config SummarizerConfig
	client *openai.Client
}

func newOpenAISummarizer(config SummarizerConfig) (*OpenAISummarizer, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	return &OpenAISummarizer{config: config, client: openai.NewClient(key)}, nil
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, query string, products []models.ProductMatch) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: float32(s.config.Temperature),
		MaxTokens:   s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(query, products)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty response from API")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// TemplateSummarizer is the deterministic variant: a templated
// enumeration of the top products. It never errors.
type TemplateSummarizer struct{}

func (TemplateSummarizer) Summarize(_ context.Context, query string, products []models.ProductMatch) (string, error) {
	if len(products) == 0 {
		return "I couldn't find relevant products for your query. Try rephrasing or relaxing " +
			"your constraints (e.g., broader category or price range).", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "For '%s', here are solid options:\n", query)
	for i, p := range products {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s (SKU %s), around %s\n", p.Name, p.SKU, priceString(p.Product))
	}
	b.WriteString("Tip: Compare features vs. budget, and check stock before ordering.")
	return b.String(), nil
}

func userPrompt(query string, products []models.ProductMatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %s\n\nRelevant products:\n", query)
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s (SKU: %s)\n", i+1, p.Name, p.SKU)
		if len(p.Category) > 0 {
			fmt.Fprintf(&b, "   Category: %s\n", strings.Join(p.Category, ", "))
		}
		fmt.Fprintf(&b, "   Price: %s\n", priceString(p.Product))
		if p.Description != "" {
			fmt.Fprintf(&b, "   Why relevant: %s\n", p.Description)
		}
	}
	b.WriteString("\nInstructions: Summarize top picks, mention trade-offs, and suggest next steps.")
	return b.String()
}

func priceString(p models.Product) string {
	if v, ok := p.Price(); ok {
		return fmt.Sprintf("$%.2f", v)
	}
	return "N/A"
}
