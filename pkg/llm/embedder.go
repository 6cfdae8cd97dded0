package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig configures an embedding backend. A single model
// produces every vector in an index; Dimension is the model's declared
// output size and a response of any other length is a configuration
// error, never silently reshaped.
type EmbedderConfig struct {
	Provider  string // "ollama" or "openai"
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int
	Timeout   time.Duration
}

// NewEmbedder selects the embedding backend once at startup.
func NewEmbedder(config EmbedderConfig) (Embedder, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	switch config.Provider {
	case "", "ollama":
		return newOllamaEmbedder(config)
	case "openai":
		return newOpenAIEmbedder(config)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Provider)
	}
}

// Embedder mirrors types.Embedder; redeclared here so the package has
// no import cycle with internal/types consumers.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
}

// OllamaEmbedder produces embeddings through a local Ollama server.
type OllamaEmbedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func newOllamaEmbedder(config EmbedderConfig) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Dimension == 0 {
		config.Dimension = 768
	}

	emb, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &OllamaEmbedder{config: config, llm: emb}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vecs, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := checkDimension(v, e.config.Dimension, e.ModelID()); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (e *OllamaEmbedder) Dimension() int  { return e.config.Dimension }
func (e *OllamaEmbedder) ModelID() string { return "ollama/" + e.config.Model }

// OpenAIEmbedder produces embeddings through the OpenAI API.
type OpenAIEmbedder struct {
	config EmbedderConfig
	client *openai.Client
}

func newOpenAIEmbedder(config EmbedderConfig) (*OpenAIEmbedder, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.Dimension == 0 {
		config.Dimension = 1536
		if config.Model == "text-embedding-3-large" {
			config.Dimension = 3072
		}
	}

	return &OpenAIEmbedder{config: config, client: openai.NewClient(key)}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.config.Model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		if err := checkDimension(v, e.config.Dimension, e.ModelID()); err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) Dimension() int  { return e.config.Dimension }
func (e *OpenAIEmbedder) ModelID() string { return "openai/" + e.config.Model }

func checkDimension(v []float32, want int, model string) error {
	if len(v) != want {
		return fmt.Errorf("embedding dimension mismatch: %s returned %d, configured %d", model, len(v), want)
	}
	return nil
}
