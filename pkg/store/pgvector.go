package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/detra/semsearch/internal/models"
)

type PgVectorConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PgVectorStore keeps chunks in Postgres with pgvector ordering by
// cosine distance. Intended for deployments that already run Postgres;
// the SQLite backend is the default.
type PgVectorStore struct {
	config PgVectorConfig
	pool   *pgxpool.Pool
}

func NewPgVector(ctx context.Context, config PgVectorConfig) (*PgVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "product_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PgVectorStore{config: config, pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			sku TEXT NOT NULL,
			chunk_no INTEGER NOT NULL,
			doc TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL,
			PRIMARY KEY (sku, chunk_no)
		)`, s.config.TableName, s.config.VectorDim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		s.config.TableName, s.config.TableName)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	createMeta := `
		CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`
	if _, err := s.pool.Exec(ctx, createMeta); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, chunks []models.ProductChunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	del := fmt.Sprintf(`DELETE FROM %s WHERE sku = $1`, s.config.TableName)
	ins := fmt.Sprintf(`INSERT INTO %s (sku, chunk_no, doc, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)`, s.config.TableName)

	ordinals := make(map[string]int)
	for _, chunk := range chunks {
		n := ordinals[chunk.SKU]
		if n == 0 {
			if _, err := tx.Exec(ctx, del, chunk.SKU); err != nil {
				return fmt.Errorf("failed to clear prior chunks for %s: %w", chunk.SKU, err)
			}
		}
		ordinals[chunk.SKU] = n + 1

		meta, err := json.Marshal(chunk.Product)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", chunk.SKU, err)
		}

		_, err = tx.Exec(ctx, ins, chunk.SKU, n, chunk.Text,
			pgvector.NewVector(chunk.Embedding), meta)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.SKU, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	// Closest chunk per sku, then the k closest skus.
	query := fmt.Sprintf(`
		SELECT metadata, distance FROM (
			SELECT DISTINCT ON (sku) sku, metadata, embedding <=> $1 AS distance
			FROM %s
			ORDER BY sku, distance
		) best
		ORDER BY distance
		LIMIT $2`, s.config.TableName)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var scored []models.ScoredChunk
	for rows.Next() {
		var meta []byte
		var distance float64
		if err := rows.Scan(&meta, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var product models.Product
		if err := json.Unmarshal(meta, &product); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		scored = append(scored, models.ScoredChunk{
			Product:  product,
			Distance: float32(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index rows: %w", err)
	}
	return scored, nil
}

func (s *PgVectorStore) Size(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(DISTINCT sku) FROM %s`, s.config.TableName)
	var count int
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count index: %w", err)
	}
	return count, nil
}

func (s *PgVectorStore) ModelInfo(ctx context.Context) (*models.IndexInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if meta["model"] == "" {
		return nil, nil
	}

	info := &models.IndexInfo{Model: meta["model"], Metric: meta["metric"]}
	info.Dimension, _ = strconv.Atoi(meta["dimension"])
	if t, err := time.Parse(time.RFC3339, meta["built_at"]); err == nil {
		info.BuiltAt = t
	}
	return info, nil
}

func (s *PgVectorStore) SetModelInfo(ctx context.Context, info models.IndexInfo) error {
	if info.Metric == "" {
		info.Metric = metricCosine
	}
	if info.BuiltAt.IsZero() {
		info.BuiltAt = time.Now().UTC()
	}

	pairs := map[string]string{
		"model":     info.Model,
		"dimension": strconv.Itoa(info.Dimension),
		"metric":    info.Metric,
		"built_at":  info.BuiltAt.Format(time.RFC3339),
	}
	for k, v := range pairs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO index_meta (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v)
		if err != nil {
			return fmt.Errorf("failed to write index metadata: %w", err)
		}
	}
	return nil
}

// Reset drops every chunk and the recorded model identity.
func (s *PgVectorStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.config.TableName)); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM index_meta`); err != nil {
		return fmt.Errorf("failed to reset index metadata: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
