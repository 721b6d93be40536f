// Package history keeps an optional Postgres ledger of edgeflowc runs.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run is one recorded invocation.
type Run struct {
	ID         uuid.UUID
	ConfigPath string
	Mode       string
	ExitCode   int
	Gate       string
	Issues     []string
	Error      string
	StartedAt  time.Time
	Duration   time.Duration
}

// Store wraps a Postgres connection.
type Store struct {
	conn *pgx.Conn
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the connection.
func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS edgeflow_schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS edgeflow_runs (
    id          UUID PRIMARY KEY,
    config_path TEXT NOT NULL,
    mode        TEXT NOT NULL CHECK(mode IN ('check-only','fast-compile','docker','pipeline')),
    exit_code   INTEGER NOT NULL,
    gate        TEXT,
    issues      TEXT[] NOT NULL DEFAULT '{}',
    error       TEXT,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edgeflow_runs_started ON edgeflow_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_edgeflow_runs_config ON edgeflow_runs(config_path, started_at DESC);
`

// Migrate applies the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO edgeflow_schema_version (version) VALUES (1) ON CONFLICT DO NOTHING"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit(ctx)
}

// Record inserts run.
func (s *Store) Record(ctx context.Context, run Run) error {
	issues := run.Issues
	if issues == nil {
		issues = []string{}
	}
	_, err := s.conn.Exec(ctx,
		`INSERT INTO edgeflow_runs (id, config_path, mode, exit_code, gate, issues, error, started_at, duration_ms)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9)`,
		run.ID, run.ConfigPath, run.Mode, run.ExitCode, run.Gate, issues, run.Error, run.StartedAt, run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns up to limit runs for configPath, newest first. An empty
// configPath returns runs for every config.
func (s *Store) Recent(ctx context.Context, configPath string, limit int) ([]Run, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, config_path, mode, exit_code, COALESCE(gate, ''), issues, COALESCE(error, ''), started_at, duration_ms
		 FROM edgeflow_runs
		 WHERE $1 = '' OR config_path = $1
		 ORDER BY started_at DESC
		 LIMIT $2`, configPath, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.ConfigPath, &r.Mode, &r.ExitCode, &r.Gate, &r.Issues, &r.Error, &r.StartedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Reset drops the ledger tables and re-applies the schema.
func (s *Store) Reset(ctx context.Context) error {
	for _, t := range []string{"edgeflow_runs", "edgeflow_schema_version"} {
		if _, err := s.conn.Exec(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return s.Migrate(ctx)
}
