// Package ratings loads the full rating dataset from a relational table or a
// CSV file.
package ratings

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// Source kinds.
const (
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindCSV      = "csv"
)

// Source returns the complete current rating dataset.
type Source interface {
	Load(ctx context.Context, cols model.Columns) ([]model.Rating, error)
	Close() error
}

// Pool mirrors the connection pool settings of the SQL sources.
type Pool struct {
	MaxOpen     int           // pool size
	MaxIdle     int           // idle connections kept
	MaxLifetime time.Duration // connections are recycled after this age
	Timeout     time.Duration // bound on connecting and on each load query
}

// DefaultPool returns 5 connections recycled after 30 minutes with a 30s timeout.
func DefaultPool() Pool {
	return Pool{MaxOpen: 5, MaxIdle: 5, MaxLifetime: 30 * time.Minute, Timeout: 30 * time.Second}
}

// Config selects and configures a source.
type Config struct {
	Kind   string
	DSN    string // postgres URL or sqlite path
	Schema string // defaults to public (postgres) or main (sqlite)
	Table  string
	Path   string // csv file
	Pool   Pool
}

// Open builds the configured source.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Source, error) {
	if log == nil {
		log = logger.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case KindPostgres:
		cfg.Schema = cmp.Or(cfg.Schema, "public")
		return OpenSQL(ctx, "postgres", cfg, log)
	case KindSQLite:
		cfg.Schema = cmp.Or(cfg.Schema, "main")
		return OpenSQL(ctx, "sqlite", cfg, log)
	case KindCSV:
		return NewCSVSource(cfg.Path, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
