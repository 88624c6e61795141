package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hamed0406/sitecheck/internal/domain"
	"github.com/hamed0406/sitecheck/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]*domain.Batch
	order   []uuid.UUID // insertion order
}

func New() *Store {
	return &Store{
		batches: make(map[uuid.UUID]*domain.Batch),
		order:   make([]uuid.UUID, 0, 16),
	}
}

func (m *Store) Save(ctx context.Context, b *domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[b.ID]; ok {
		return fmt.Errorf("%w: %s", repo.ErrExists, b.ID)
	}
	m.order = append(m.order, b.ID)
	m.batches[b.ID] = clone(b)
	return nil
}

func (m *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(b), nil
}

func (m *Store) Latest(ctx context.Context) (*domain.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Batch
	for _, b := range m.batches {
		if latest == nil || b.StartedAt.After(latest.StartedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, repo.ErrNotFound
	}
	return clone(latest), nil
}

func (m *Store) List(ctx context.Context, limit int) ([]repo.BatchInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]repo.BatchInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, repo.InfoOf(m.batches[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// results are write-once values, a shallow slice copy is enough
func clone(b *domain.Batch) *domain.Batch {
	cp := *b
	cp.Results = append([]domain.CheckResult(nil), b.Results...)
	return &cp
}
