// Package store provides the persistence adapters: Postgres for canonical
// postings and Redis for run summaries.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillmap/harvester/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostingStoreConfig controls the Postgres connection pool.
type PostingStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type rowQuerier interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PostingStore upserts canonical postings into Postgres, keyed by
// content ID with the full record as a JSONB payload.
type PostingStore struct {
	pool  rowQuerier
	table string
}

// NewPostingStore creates a Postgres-backed PostingStore.
func NewPostingStore(ctx context.Context, cfg PostingStoreConfig) (*PostingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "job_postings"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostingStore{pool: pool, table: table}, nil
}

// NewPostingStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostingStoreWithPool(pool rowQuerier, table string) (*PostingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "job_postings"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostingStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert writes one posting keyed by its content ID. Re-writing an
// identical payload is a no-op reported as unchanged; xmax
// distinguishes a fresh insert from an overwrite.
func (s *PostingStore) Upsert(ctx context.Context, posting harvest.JobPosting) (harvest.UpsertOutcome, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("posting store is not configured")
	}
	if posting.ID == "" {
		return "", fmt.Errorf("posting id is required")
	}
	payload, err := json.Marshal(posting)
	if err != nil {
		return "", fmt.Errorf("marshal posting: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (content_id, site, quality_score, payload, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (content_id) DO UPDATE
SET site = excluded.site,
	quality_score = excluded.quality_score,
	payload = excluded.payload,
	updated_at = now()
WHERE %s.payload IS DISTINCT FROM excluded.payload
RETURNING (xmax = 0) AS inserted`, s.table, s.table)

	var inserted bool
	err = s.pool.QueryRow(ctx, query, posting.ID, posting.Source, posting.QualityScore, payload).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict row already carried this exact payload.
		return harvest.UpsertUnchanged, nil
	}
	if err != nil {
		return "", fmt.Errorf("upsert posting: %w", err)
	}
	if inserted {
		return harvest.UpsertInserted, nil
	}
	return harvest.UpsertUpdated, nil
}
