package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/sitecheck/internal/domain"
)

var (
	ErrNotFound = errors.New("batch not found")
	ErrExists   = errors.New("batch already saved")
)

// BatchInfo is a batch header without its results.
type BatchInfo struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Failed     int       `json:"failed"`
}

// BatchStore persists finished batches. Swap in any DB adapter.
// Batches are write-once: saving an ID twice fails.
type BatchStore interface {
	Save(ctx context.Context, b *domain.Batch) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	Latest(ctx context.Context) (*domain.Batch, error)
	List(ctx context.Context, limit int) ([]BatchInfo, error)
}

func InfoOf(b *domain.Batch) BatchInfo {
	s := b.Summary()
	return BatchInfo{
		ID:         b.ID,
		StartedAt:  b.StartedAt,
		FinishedAt: b.FinishedAt,
		Total:      s.Total,
		Failed:     s.Failed,
	}
}
