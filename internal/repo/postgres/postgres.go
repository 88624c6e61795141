package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitecheck/internal/domain"
	"github.com/hamed0406/sitecheck/internal/repo"
)

var _ repo.BatchStore = (*Store)(nil)

const Schema = `
CREATE TABLE IF NOT EXISTS batches (
  id          UUID PRIMARY KEY,
  started_at  TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  timeout_ms  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
  batch_id    UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
  position    INTEGER NOT NULL,
  url         TEXT NOT NULL,
  ok          BOOLEAN NOT NULL,
  http_status INTEGER NULL,
  error       TEXT NOT NULL DEFAULT '',
  kind        TEXT NOT NULL DEFAULT '',
  latency_ms  DOUBLE PRECISION NOT NULL,
  started_at  TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (batch_id, position)
);

CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches (started_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// EnsureSchema applies Schema; every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Save(ctx context.Context, b *domain.Batch) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO batches (id, started_at, finished_at, timeout_ms)
			 VALUES ($1, $2, $3, $4)`,
			b.ID, b.StartedAt, b.FinishedAt, b.Timeout.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		rows := make([][]any, 0, len(b.Results))
		for i, r := range b.Results {
			row := repo.RowOf(i, r)
			rows = append(rows, []any{
				b.ID, row.Position, row.URL, row.OK, row.Status,
				row.Error, row.Kind, row.LatencyMS, row.StartedAt,
			})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"results"},
			[]string{"batch_id", "position", "url", "ok", "http_status", "error", "kind", "latency_ms", "started_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.log != nil {
		s.log.Debug("batch_saved", zap.String("batch_id", b.ID.String()), zap.Int("results", len(b.Results)))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	b := &domain.Batch{ID: id}
	var timeoutMS int64
	err := s.pool.QueryRow(ctx,
		`SELECT started_at, finished_at, timeout_ms FROM batches WHERE id = $1`, id,
	).Scan(&b.StartedAt, &b.FinishedAt, &timeoutMS)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b.Timeout = time.Duration(timeoutMS) * time.Millisecond

	results, err := s.results(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Results = results
	return b, nil
}

func (s *Store) Latest(ctx context.Context) (*domain.Batch, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM batches ORDER BY started_at DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("latest batch: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) List(ctx context.Context, limit int) ([]repo.BatchInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT b.id,
       b.started_at,
       b.finished_at,
       COUNT(r.position),
       COUNT(r.position) FILTER (WHERE NOT r.ok)
  FROM batches b
  LEFT JOIN results r ON r.batch_id = b.id
 GROUP BY b.id
 ORDER BY b.started_at DESC
 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []repo.BatchInfo
	for rows.Next() {
		var info repo.BatchInfo
		if err := rows.Scan(&info.ID, &info.StartedAt, &info.FinishedAt, &info.Total, &info.Failed); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) results(ctx context.Context, id uuid.UUID) ([]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT position, url, ok, http_status, error, kind, latency_ms, started_at
  FROM results
 WHERE batch_id = $1
 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var row repo.ResultRow
		if err := rows.Scan(&row.Position, &row.URL, &row.OK, &row.Status, &row.Error,
			&row.Kind, &row.LatencyMS, &row.StartedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r, err := row.Result()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
