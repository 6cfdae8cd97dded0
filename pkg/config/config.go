package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr          string `yaml:"addr"`
		MaxResultsCap int    `yaml:"max_results_cap"`
	} `yaml:"server"`

	Dataset struct {
		Path string `yaml:"path"`
	} `yaml:"dataset"`

	Embedding struct {
		Provider  string        `yaml:"provider"` // "ollama" or "openai"
		Model     string        `yaml:"model"`
		BaseURL   string        `yaml:"base_url"`
		Dimension int           `yaml:"dimension"`
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"` // embedding calls per second at ingest
	} `yaml:"embedding"`

	Index struct {
		Backend   string `yaml:"backend"` // "sqlite" or "pgvector"
		Path      string `yaml:"path"`    // sqlite file
		URL       string `yaml:"url"`     // postgres connection string
		TableName string `yaml:"table_name"`
		MinScore  float64 `yaml:"min_score"`
	} `yaml:"index"`

	LLM struct {
		Provider    string        `yaml:"provider"` // "ollama", "openai" or "template"
		Model       string        `yaml:"model"`
		BaseURL     string        `yaml:"base_url"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Cache struct {
		TTL        time.Duration `yaml:"ttl"`
		MaxEntries int           `yaml:"max_entries"`
	} `yaml:"cache"`

	RateLimit struct {
		Window      time.Duration `yaml:"window"`
		MaxRequests int           `yaml:"max_requests"`
	} `yaml:"rate_limit"`

	Processor struct {
		MaxChunkChars int `yaml:"max_chunk_chars"` // 0 = one chunk per product
	} `yaml:"processor"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/semsearch/config.yaml"),
			"/etc/semsearch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxResultsCap == 0 {
		config.Server.MaxResultsCap = 10
	}

	if config.Dataset.Path == "" {
		config.Dataset.Path = "catalog.csv"
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 768
	}
	if config.Embedding.Timeout == 0 {
		config.Embedding.Timeout = 30 * time.Second
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 10
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "sqlite"
	}
	if config.Index.Path == "" {
		config.Index.Path = "semsearch.db"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "product_chunks"
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "template"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 30 * time.Second
	}

	if config.Cache.TTL == 0 {
		config.Cache.TTL = 60 * time.Second
	}
	if config.Cache.MaxEntries == 0 {
		config.Cache.MaxEntries = 256
	}

	if config.RateLimit.Window == 0 {
		config.RateLimit.Window = 60 * time.Second
	}
	if config.RateLimit.MaxRequests == 0 {
		config.RateLimit.MaxRequests = 60
	}
}

func mergeWithEnv(config *Config) {
	if addr := os.Getenv("SEMSEARCH_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if path := os.Getenv("DATASET_PATH"); path != "" {
		config.Dataset.Path = path
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		config.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.URL = dbURL
	}
	if path := os.Getenv("INDEX_PATH"); path != "" {
		config.Index.Path = path
	}
	if ttl := os.Getenv("CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Cache.TTL = d
		}
	}
}
