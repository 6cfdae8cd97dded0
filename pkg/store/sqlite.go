package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/detra/semsearch/internal/models"
)

type SQLiteConfig struct {
	Path      string
	TableName string
}

// SQLiteStore keeps chunks, embeddings and display metadata in one
// local database file. Queries rank by cosine distance computed in Go;
// at catalog scale a full scan beats maintaining an ANN structure.
type SQLiteStore struct {
	config SQLiteConfig
	db     *sql.DB
}

func NewSQLite(config SQLiteConfig) (*SQLiteStore, error) {
	if config.TableName == "" {
		config.TableName = "product_chunks"
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	s := &SQLiteStore{config: config, db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL,
			chunk_no INTEGER NOT NULL,
			doc TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %s_sku_idx ON %s (sku);
		CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		s.config.TableName, s.config.TableName, s.config.TableName)

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create index tables: %w", err)
	}
	return nil
}

// Upsert replaces all rows for each chunk's sku inside one
// transaction, so readers never observe a half-written product.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []models.ProductChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := fmt.Sprintf(`DELETE FROM %s WHERE sku = ?`, s.config.TableName)
	ins := fmt.Sprintf(`INSERT INTO %s (id, sku, chunk_no, doc, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`, s.config.TableName)

	ordinals := make(map[string]int)
	for _, chunk := range chunks {
		n := ordinals[chunk.SKU]
		if n == 0 {
			if _, err := tx.ExecContext(ctx, del, chunk.SKU); err != nil {
				return fmt.Errorf("failed to clear prior chunks for %s: %w", chunk.SKU, err)
			}
		}
		ordinals[chunk.SKU] = n + 1

		meta, err := json.Marshal(chunk.Product)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", chunk.SKU, err)
		}

		id := chunk.SKU
		if n > 0 {
			id = fmt.Sprintf("%s_%d", chunk.SKU, n)
		}
		_, err = tx.ExecContext(ctx, ins, id, chunk.SKU, n, chunk.Text,
			encodeVector(chunk.Embedding), string(meta))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT embedding, metadata FROM %s`, s.config.TableName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var scored []models.ScoredChunk
	for rows.Next() {
		var blob []byte
		var meta string
		if err := rows.Scan(&blob, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		var product models.Product
		if err := json.Unmarshal([]byte(meta), &product); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}

		scored = append(scored, models.ScoredChunk{
			Product:  product,
			Distance: cosineDistance(embedding, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index rows: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	scored = dedupeBySKU(scored)
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *SQLiteStore) Size(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(DISTINCT sku) FROM %s`, s.config.TableName)
	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count index: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) ModelInfo(ctx context.Context) (*models.IndexInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
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

func (s *SQLiteStore) SetModelInfo(ctx context.Context, info models.IndexInfo) error {
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
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO index_meta (key, value) VALUES (?, ?)`, k, v)
		if err != nil {
			return fmt.Errorf("failed to write index metadata: %w", err)
		}
	}
	return nil
}

// Reset drops every chunk and the recorded model identity. Used by the
// index builder's force-rebuild path.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.config.TableName)); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return fmt.Errorf("failed to reset index metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
