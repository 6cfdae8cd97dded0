package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/detra/semsearch/pkg/cache"
	cfgPkg "github.com/detra/semsearch/pkg/config"
	"github.com/detra/semsearch/pkg/llm"
	"github.com/detra/semsearch/pkg/ratelimit"
	"github.com/detra/semsearch/pkg/retriever"
	"github.com/detra/semsearch/pkg/store"
	"github.com/detra/semsearch/server"
)

func main() {
	_ = godotenv.Load()

	var configPath, addr string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.Parse()

	if err := run(configPath, addr); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, addr string) error {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config error: %v", e)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		return err
	}

	vectorStore, err := store.Open(ctx, store.OpenConfig{
		Backend:   cfg.Index.Backend,
		Path:      cfg.Index.Path,
		URL:       cfg.Index.URL,
		TableName: cfg.Index.TableName,
		VectorDim: cfg.Embedding.Dimension,
	})
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	// An index built with one model must never serve queries embedded
	// with another. Refuse to start rather than return nonsense scores.
	if err := store.VerifyModel(ctx, vectorStore, embedder.ModelID(), embedder.Dimension()); err != nil {
		return err
	}

	size, err := vectorStore.Size(ctx)
	if err != nil {
		return err
	}
	log.Printf("vector index ready with %d items", size)

	summarizer, err := llm.NewSummarizer(llm.SummarizerConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	r := retriever.NewWithConfig(retriever.RetrieverConfig{
		MinScore: cfg.Index.MinScore,
		Timeout:  cfg.Embedding.Timeout,
	}, embedder, vectorStore)

	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		MaxResultsCap: cfg.Server.MaxResultsCap,
	}, r, summarizer, vectorStore,
		cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries),
		ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))

	return srv.ListenAndServe(ctx)
}
