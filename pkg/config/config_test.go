package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Server.MaxResultsCap)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, "sqlite", cfg.Index.Backend)
	assert.Equal(t, "template", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 60, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 0, cfg.Processor.MaxChunkChars)

	assert.Empty(t, cfg.Validate(), "defaults must validate clean")
}

func TestLoadConfig_FromFile(t *testing.T) {
	content := `
server:
  addr: ":9090"
  max_results_cap: 20
embedding:
  provider: openai
  model: text-embedding-3-small
  dimension: 1536
index:
  backend: sqlite
  path: /tmp/test-index.db
  min_score: 0.25
llm:
  provider: template
rate_limit:
  window: 30s
  max_requests: 5
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Server.MaxResultsCap)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, "/tmp/test-index.db", cfg.Index.Path)
	assert.Equal(t, 0.25, cfg.Index.MinScore)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)

	// Unset fields still get defaults.
	assert.Equal(t, "template", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SEMSEARCH_ADDR", ":7070")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434")
	t.Setenv("EMBEDDING_MODEL", "mxbai-embed-large")
	t.Setenv("INDEX_PATH", "/data/index.db")
	t.Setenv("CACHE_TTL", "5m")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "http://ollama.internal:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, "/data/index.db", cfg.Index.Path)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := getDefaultConfig()
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "unknown embedding provider",
			mutate: func(c *Config) { c.Embedding.Provider = "carrier-pigeon" },
			field:  "embedding.provider",
		},
		{
			name:   "zero dimension",
			mutate: func(c *Config) { c.Embedding.Dimension = 0 },
			field:  "embedding.dimension",
		},
		{
			name:   "negative embedding rate limit",
			mutate: func(c *Config) { c.Embedding.RateLimit = -5 },
			field:  "embedding.rate_limit",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Index.Backend = "csv" },
			field:  "index.backend",
		},
		{
			name:   "pgvector without url",
			mutate: func(c *Config) { c.Index.Backend = "pgvector"; c.Index.URL = "" },
			field:  "index.url",
		},
		{
			name:   "min_score out of range",
			mutate: func(c *Config) { c.Index.MinScore = 1.5 },
			field:  "index.min_score",
		},
		{
			name:   "unknown llm provider",
			mutate: func(c *Config) { c.LLM.Provider = "smoke-signals" },
			field:  "llm.provider",
		},
		{
			name:   "temperature out of range",
			mutate: func(c *Config) { c.LLM.Temperature = 3.0 },
			field:  "llm.temperature",
		},
		{
			name:   "negative cache ttl",
			mutate: func(c *Config) { c.Cache.TTL = -time.Second },
			field:  "cache.ttl",
		},
		{
			name:   "zero rate limit window",
			mutate: func(c *Config) { c.RateLimit.Window = -time.Second },
			field:  "rate_limit.window",
		},
		{
			name:   "negative chunk chars",
			mutate: func(c *Config) { c.Processor.MaxChunkChars = -1 },
			field:  "processor.max_chunk_chars",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.NotEmpty(t, errs)
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
