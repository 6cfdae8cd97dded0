package store

import (
	"context"
	"fmt"

	"github.com/detra/semsearch/internal/types"
)

type OpenConfig struct {
	Backend   string // "sqlite" or "pgvector"
	Path      string // sqlite database file
	URL       string // postgres connection string
	TableName string
	VectorDim int
}

// Open selects the index backend once at startup.
func Open(ctx context.Context, config OpenConfig) (types.VectorStore, error) {
	switch config.Backend {
	case "", "sqlite":
		return NewSQLite(SQLiteConfig{
			Path:      config.Path,
			TableName: config.TableName,
		})
	case "pgvector":
		return NewPgVector(ctx, PgVectorConfig{
			ConnString: config.URL,
			TableName:  config.TableName,
			VectorDim:  config.VectorDim,
		})
	default:
		return nil, fmt.Errorf("unknown index backend: %s", config.Backend)
	}
}
