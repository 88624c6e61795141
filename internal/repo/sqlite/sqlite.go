package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/sitecheck/internal/domain"
	"github.com/hamed0406/sitecheck/internal/repo"
)

var _ repo.BatchStore = (*Store)(nil)

// Timestamps are stored as unix nanoseconds so ORDER BY sorts them.
const schema = `
CREATE TABLE IF NOT EXISTS batches (
  id          TEXT PRIMARY KEY,
  started_at  INTEGER NOT NULL,
  finished_at INTEGER NOT NULL,
  timeout_ms  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
  batch_id    TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
  position    INTEGER NOT NULL,
  url         TEXT NOT NULL,
  ok          INTEGER NOT NULL,
  http_status INTEGER NULL,
  error       TEXT NOT NULL DEFAULT '',
  kind        TEXT NOT NULL DEFAULT '',
  latency_ms  REAL NOT NULL,
  started_at  INTEGER NOT NULL,
  PRIMARY KEY (batch_id, position)
);

CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches (started_at DESC);
`

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates the database file (and its directory) if needed and applies
// the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Save(ctx context.Context, b *domain.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, started_at, finished_at, timeout_ms) VALUES (?, ?, ?, ?)`,
		b.ID.String(), b.StartedAt.UnixNano(), b.FinishedAt.UnixNano(), b.Timeout.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO results (batch_id, position, url, ok, http_status, error, kind, latency_ms, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	for i, r := range b.Results {
		row := repo.RowOf(i, r)
		var status sql.NullInt64
		if row.Status != nil {
			status = sql.NullInt64{Int64: int64(*row.Status), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			b.ID.String(), row.Position, row.URL, row.OK, status,
			row.Error, row.Kind, row.LatencyMS, row.StartedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if s.log != nil {
		s.log.Debug("batch_saved", zap.String("batch_id", b.ID.String()), zap.Int("results", len(b.Results)))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	var started, finished, timeoutMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at, finished_at, timeout_ms FROM batches WHERE id = ?`, id.String(),
	).Scan(&started, &finished, &timeoutMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}

	b := &domain.Batch{
		ID:         id,
		StartedAt:  time.Unix(0, started).UTC(),
		FinishedAt: time.Unix(0, finished).UTC(),
		Timeout:    time.Duration(timeoutMS) * time.Millisecond,
	}
	if b.Results, err = s.results(ctx, id); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) Latest(ctx context.Context) (*domain.Batch, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM batches ORDER BY started_at DESC LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest batch: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("stored batch id %q: %w", raw, err)
	}
	return s.Get(ctx, id)
}

func (s *Store) List(ctx context.Context, limit int) ([]repo.BatchInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT b.id,
       b.started_at,
       b.finished_at,
       COUNT(r.position),
       COALESCE(SUM(CASE WHEN r.ok = 0 THEN 1 ELSE 0 END), 0)
  FROM batches b
  LEFT JOIN results r ON r.batch_id = b.id
 GROUP BY b.id
 ORDER BY b.started_at DESC
 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []repo.BatchInfo
	for rows.Next() {
		var (
			info              repo.BatchInfo
			raw               string
			started, finished int64
		)
		if err := rows.Scan(&raw, &started, &finished, &info.Total, &info.Failed); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if info.ID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("stored batch id %q: %w", raw, err)
		}
		info.StartedAt = time.Unix(0, started).UTC()
		info.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) results(ctx context.Context, id uuid.UUID) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT position, url, ok, http_status, error, kind, latency_ms, started_at
  FROM results
 WHERE batch_id = ?
 ORDER BY position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var (
			row     repo.ResultRow
			status  sql.NullInt64
			started int64
		)
		if err := rows.Scan(&row.Position, &row.URL, &row.OK, &status, &row.Error,
			&row.Kind, &row.LatencyMS, &started); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if status.Valid {
			v := int(status.Int64)
			row.Status = &v
		}
		row.StartedAt = time.Unix(0, started).UTC()
		r, err := row.Result()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
