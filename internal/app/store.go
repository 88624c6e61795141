package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sitecheck/internal/config"
	"github.com/hamed0406/sitecheck/internal/repo"
	"github.com/hamed0406/sitecheck/internal/repo/memory"
	"github.com/hamed0406/sitecheck/internal/repo/postgres"
	"github.com/hamed0406/sitecheck/internal/repo/sqlite"
)

// OpenStore picks the batch store from cfg: Postgres when DatabaseURL is set,
// else SQLite when SQLitePath is set, else memory. The returned func closes it.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repo.BatchStore, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		log.Info("store_selected", zap.String("kind", "postgres"))
		return s, s.Close, nil

	case cfg.SQLitePath != "":
		s, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		log.Info("store_selected", zap.String("kind", "sqlite"), zap.String("path", cfg.SQLitePath))
		return s, func() { _ = s.Close() }, nil

	default:
		log.Info("store_selected", zap.String("kind", "memory"))
		return memory.New(), func() {}, nil
	}
}
