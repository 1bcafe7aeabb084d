package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edupack/concord-stager/internal/pipeline"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool used for result rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres upserts package results into a Postgres table keyed by source
// id, so re-runs of an entry replace the previous row.
type Postgres struct {
	pool  execCloser
	table string
}

// NewPostgres connects a pool from the config.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "package_results"
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
	return &Postgres{pool: pool, table: table}, nil
}

// NewPostgresWithPool constructs a store from an existing pool (primarily
// for testing).
func NewPostgresWithPool(pool execCloser, table string) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "package_results"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Postgres{pool: pool, table: table}, nil
}

// SaveResult upserts one result row.
func (s *Postgres) SaveResult(ctx context.Context, result pipeline.PackageResult) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres store is not configured")
	}
	if result.SourceID == "" {
		return fmt.Errorf("source id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	source_id,
	title,
	description,
	license,
	archive_path,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,now()
)
ON CONFLICT (source_id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	license = EXCLUDED.license,
	archive_path = EXCLUDED.archive_path,
	updated_at = now()`, s.table)

	args := []any{
		result.SourceID,
		result.Title,
		result.Description,
		result.License,
		result.ArchivePath,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert package result: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
