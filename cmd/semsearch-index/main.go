package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/detra/semsearch/internal/models"
	"github.com/detra/semsearch/internal/types"
	"github.com/detra/semsearch/pkg/catalog"
	cfgPkg "github.com/detra/semsearch/pkg/config"
	"github.com/detra/semsearch/pkg/llm"
	"github.com/detra/semsearch/pkg/processor"
	"github.com/detra/semsearch/pkg/store"
)

const embedBatchSize = 16

func main() {
	_ = godotenv.Load()

	var configPath, dataset string
	var force bool
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&dataset, "dataset", "", "Catalog CSV path (overrides config)")
	flag.BoolVar(&force, "force", false, "Wipe and rebuild the index")
	flag.Parse()

	if err := run(configPath, dataset, force); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, dataset string, force bool) error {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dataset != "" {
		cfg.Dataset.Path = dataset
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config error: %v", e)
		}
		os.Exit(1)
	}

	ctx := context.Background()

	color.Cyan("Loading catalog from %s", cfg.Dataset.Path)
	products, err := catalog.New(cfg.Dataset.Path).Load()
	if err != nil {
		return err
	}
	color.Blue("Loaded %d products", len(products))

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		MaxChunkChars: cfg.Processor.MaxChunkChars,
	})
	chunks := proc.BuildChunks(products)

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

	if force {
		color.Yellow("Rebuilding index from scratch")
		if err := vectorStore.Reset(ctx); err != nil {
			return err
		}
	} else if err := store.VerifyModel(ctx, vectorStore, embedder.ModelID(), embedder.Dimension()); err != nil {
		return fmt.Errorf("%w (use -force to rebuild)", err)
	}

	if err := embedAndStore(ctx, cfg, embedder, vectorStore, chunks); err != nil {
		return err
	}

	if err := vectorStore.SetModelInfo(ctx, models.IndexInfo{
		Model:     embedder.ModelID(),
		Dimension: embedder.Dimension(),
	}); err != nil {
		return err
	}

	total, err := vectorStore.Size(ctx)
	if err != nil {
		return err
	}
	color.Green("Index build complete. Total items: %d", total)
	return nil
}

func embedAndStore(ctx context.Context, cfg *cfgPkg.Config, embedder llm.Embedder, vectorStore types.VectorStore, chunks []models.ProductChunk) error {
	bar := getProgressBar(len(chunks), " Embedding catalog...")
	limiter := rate.NewLimiter(rate.Limit(cfg.Embedding.RateLimit), 1)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}

		if err := vectorStore.Upsert(ctx, batch); err != nil {
			return err
		}
		bar.Add(len(batch))
	}
	bar.Finish()
	fmt.Println()
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
}
