package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// DBPool is the subset of pgxpool.Pool the store uses, so tests can mock it.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createBatchResults = `
        CREATE TABLE IF NOT EXISTS batch_results (
            run_id       TEXT        NOT NULL,
            entry_index  INTEGER     NOT NULL,
            status       TEXT        NOT NULL,
            processed_at TIMESTAMPTZ NOT NULL,
            entry_data   JSONB       NOT NULL,
            error        TEXT,
            PRIMARY KEY (run_id, entry_index)
        );
    `

const insertBatchResult = `
        INSERT INTO batch_results (run_id, entry_index, status, processed_at, entry_data, error)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (run_id, entry_index) DO NOTHING;
    `

// Store writes batch results to PostgreSQL. It implements schemas.ResultSink.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New verifies the connection and makes sure the batch_results table exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{pool: pool, log: logger.Named("store")}
	if _, err := pool.Exec(ctx, createBatchResults); err != nil {
		return nil, fmt.Errorf("failed to create batch_results table: %w", err)
	}
	return s, nil
}

// Persist inserts one result. Results are immutable, so a row that already
// exists for the same run and entry is left alone.
func (s *Store) Persist(ctx context.Context, result schemas.BatchResult) error {
	entry, err := jsoniter.Marshal(result.Record)
	if err != nil {
		return fmt.Errorf("failed to encode entry %d: %w", result.Index, err)
	}
	var errText *string
	if result.Error != "" {
		errText = &result.Error
	}

	tag, err := s.pool.Exec(ctx, insertBatchResult,
		result.RunID, result.Index, string(result.Status),
		result.ProcessedAt.UTC(), entry, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch result %d: %w", result.Index, err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Debug("Batch result already stored.", zap.String("run_id", result.RunID), zap.Int("index", result.Index))
	}
	return nil
}

// Connect opens a connection pool for url and wraps it in a Store. The
// returned func closes the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}
