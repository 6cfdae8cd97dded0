package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Server.MaxResultsCap < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_results_cap",
			Message: "max_results_cap must be positive",
		})
	}

	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown embedding provider: %s", c.Embedding.Provider),
		})
	}

	if c.Embedding.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimension",
			Message: "dimension must be positive",
		})
	}

	if _, err := url.Parse(c.Embedding.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid embedding base URL",
		})
	}

	if c.Embedding.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	switch c.Index.Backend {
	case "sqlite":
		if c.Index.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "index.path",
				Message: "sqlite backend requires a database path",
			})
		}
	case "pgvector":
		if c.Index.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "index.url",
				Message: "pgvector backend requires a connection string",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown index backend: %s", c.Index.Backend),
		})
	}

	if c.Index.MinScore < 0 || c.Index.MinScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "index.min_score",
			Message: "min_score must be between 0 and 1",
		})
	}

	switch c.LLM.Provider {
	case "ollama", "openai", "template":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown llm provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Cache.TTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.ttl",
			Message: "ttl cannot be negative",
		})
	}

	if c.Cache.MaxEntries < 1 {
		errors = append(errors, ValidationError{
			Field:   "cache.max_entries",
			Message: "max_entries must be positive",
		})
	}

	if c.RateLimit.Window <= 0 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.window",
			Message: "window must be positive",
		})
	}

	if c.RateLimit.MaxRequests < 1 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.max_requests",
			Message: "max_requests must be positive",
		})
	}

	if c.Processor.MaxChunkChars < 0 {
		errors = append(errors, ValidationError{
			Field:   "processor.max_chunk_chars",
			Message: "max_chunk_chars cannot be negative",
		})
	}

	return errors
}
