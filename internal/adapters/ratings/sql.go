package ratings

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// SQLSource reads ratings from one table.
type SQLSource struct {
	db     *sqlx.DB
	schema string
	table  string
	pool   Pool
	log    logger.Logger
}

type ratingRow struct {
	User   string  `db:"user_id"`
	Item   string  `db:"item_id"`
	Rating float64 `db:"rating"`
}

// OpenSQL connects with driverName ("postgres" or "sqlite") and applies the
// pool settings.
func OpenSQL(ctx context.Context, driverName string, cfg Config, log logger.Logger) (*SQLSource, error) {
	pool := cfg.Pool
	if pool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.Timeout)
		defer cancel()
	}

	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime)
	}

	log.Info(ctx, "rating source connected",
		logger.String("driver", driverName),
		logger.String("table", cfg.Table),
		logger.Int("pool_size", pool.MaxOpen),
	)
	return NewSQLSource(db, cfg.Schema, cfg.Table, pool, log), nil
}

// NewSQLSource wraps an open database.
func NewSQLSource(db *sqlx.DB, schema, table string, pool Pool, log logger.Logger) *SQLSource {
	if log == nil {
		log = logger.Nop()
	}
	return &SQLSource{db: db, schema: schema, table: table, pool: pool, log: log}
}

// Query returns the SELECT for cols. Identifiers are quoted; rows with a
// NULL in any selected column are skipped.
func (s *SQLSource) Query(cols model.Columns) string {
	u, i, r := pq.QuoteIdentifier(cols.User), pq.QuoteIdentifier(cols.Item), pq.QuoteIdentifier(cols.Rating)
	table := pq.QuoteIdentifier(s.table)
	if s.schema != "" {
		table = pq.QuoteIdentifier(s.schema) + "." + table
	}
	return fmt.Sprintf(
		`SELECT %s AS user_id, %s AS item_id, %s AS rating FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL AND %s IS NOT NULL`,
		u, i, r, table, u, i, r,
	)
}

// Load implements Source.
func (s *SQLSource) Load(ctx context.Context, cols model.Columns) ([]model.Rating, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}
	if s.pool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.pool.Timeout)
		defer cancel()
	}

	var rows []ratingRow
	if err := s.db.SelectContext(ctx, &rows, s.Query(cols)); err != nil {
		return nil, fmt.Errorf("load ratings from %s: %w", s.table, err)
	}

	out := make([]model.Rating, len(rows))
	for n, row := range rows {
		out[n] = model.Rating{User: row.User, Item: row.Item, Value: row.Rating}
	}
	s.log.Debug(ctx, "ratings loaded", logger.Int("rows", len(out)), logger.String("columns", cols.String()))
	return out, nil
}

// Close releases the pool.
func (s *SQLSource) Close() error {
	return s.db.Close()
}
