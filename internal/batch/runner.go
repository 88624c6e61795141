package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitecheck/internal/domain"
	"github.com/hamed0406/sitecheck/internal/repo"
)

// Runner performs one single-pass batch: dispatch, collect, join, persist.
type Runner struct {
	Logger     *zap.Logger
	Dispatcher *Dispatcher
	Store      repo.BatchStore // optional
	Metrics    Metrics
	Timeout    time.Duration // recorded on the batch; probes enforce it
	Ordered    bool          // input-order results instead of arrival order
}

func NewRunner(
	logger *zap.Logger,
	d *Dispatcher,
	store repo.BatchStore,
	m Metrics,
	timeout time.Duration,
	ordered bool,
) *Runner {
	return &Runner{
		Logger:     logger,
		Dispatcher: d,
		Store:      store,
		Metrics:    m,
		Timeout:    timeout,
		Ordered:    ordered,
	}
}

// Run checks every URL once. Failed probes are part of the returned batch;
// an error means the run itself broke (a task died or the batch could not be
// stored). The batch is returned even then, holding whatever was collected.
func (r *Runner) Run(ctx context.Context, urls []string) (*domain.Batch, error) {
	b := domain.NewBatch(r.Timeout)
	log := r.logger().With(zap.String("batch_id", b.ID.String()))
	log.Info("batch_started", zap.Int("targets", len(urls)), zap.Bool("ordered", r.Ordered))

	h := r.Dispatcher.Dispatch(ctx, urls)

	var (
		results []domain.CheckResult
		err     error
	)
	if r.Ordered {
		results, err = CollectOrdered(h)
	} else {
		results, err = Collect(h)
	}
	// Collect already folds in the task error; AwaitAll is the join point
	if werr := AwaitAll(h); err == nil {
		err = werr
	}

	b.Results = results
	b.FinishedAt = time.Now().UTC()
	r.metrics().ObserveBatch(b)

	s := b.Summary()
	log.Info("all_tasks_finished",
		zap.String("state", h.State().String()),
		zap.Int("total", s.Total),
		zap.Int("ok", s.OK),
		zap.Int("failed", s.Failed),
		zap.Int("non_2xx", s.Non2xx),
		zap.Duration("elapsed", s.Elapsed),
	)
	if err != nil {
		log.Error("batch_broken", zap.Error(err))
		return b, err
	}

	if r.Store != nil {
		if err := r.Store.Save(ctx, b); err != nil {
			log.Warn("batch_save_error", zap.Error(err))
			return b, fmt.Errorf("save batch: %w", err)
		}
	}
	return b, nil
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) metrics() Metrics {
	if r.Metrics == nil {
		return nopMetrics{}
	}
	return r.Metrics
}
