// Package store reads finalized sales from PostgreSQL and keeps an audit
// trail of print jobs.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSaleNotFound is returned when a sale id does not exist.
var ErrSaleNotFound = errors.New("sale not found")

// Querier is the subset of pgxpool.Pool the repositories use.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "receiptd"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// PrintJobsSchema creates the audit table. The sales tables belong to the
// point of sale and are only read.
const PrintJobsSchema = `CREATE TABLE IF NOT EXISTS print_jobs (
	id         TEXT PRIMARY KEY,
	strategy   TEXT,
	success    BOOLEAN NOT NULL,
	attempts   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrate creates the tables this package owns.
func Migrate(ctx context.Context, db Querier) error {
	if _, err := db.Exec(ctx, PrintJobsSchema); err != nil {
		return fmt.Errorf("create print_jobs: %w", err)
	}
	return nil
}
