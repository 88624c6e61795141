package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitecheck/internal/domain"
	"github.com/hamed0406/sitecheck/internal/probe"
)

// Result is a CheckResult tagged with the input position of its target.
type Result struct {
	Index int
	domain.CheckResult
}

// Handles tracks the tasks of one dispatched batch and the channel they
// report on. The channel is closed once every task has terminated.
type Handles struct {
	expected int
	results  chan Result
	done     chan struct{}
	err      error // written before done is closed
	drained  atomic.Bool
	state    stateMachine
}

func newHandles(n int) *Handles {
	return &Handles{
		expected: n,
		results:  make(chan Result, n),
		done:     make(chan struct{}),
	}
}

// Expected is the number of dispatched targets.
func (h *Handles) Expected() int { return h.expected }

// Results is the shared many-producer, single-consumer result channel.
func (h *Handles) Results() <-chan Result { return h.results }

// Done is closed after every task has terminated.
func (h *Handles) Done() <-chan struct{} { return h.done }

func (h *Handles) State() State { return h.state.load() }

func (h *Handles) finish(err error) {
	h.err = err
	close(h.done)
}

// settle moves to Done once tasks are joined and results consumed.
func (h *Handles) settle() {
	select {
	case <-h.done:
	default:
		return
	}
	if h.drained.Load() {
		h.state.advance(StateDone)
	}
}

// Dispatcher fans a URL list out to concurrent probes.
type Dispatcher struct {
	Prober probe.Prober

	// Workers caps concurrent probes. Zero, or a value not below the number of
	// targets, starts one goroutine per target.
	Workers int

	Logger  *zap.Logger
	Metrics Metrics
}

func NewDispatcher(p probe.Prober, workers int, logger *zap.Logger, m Metrics) *Dispatcher {
	if workers < 0 {
		workers = 0
	}
	return &Dispatcher{Prober: p, Workers: workers, Logger: logger, Metrics: m}
}

// Dispatch starts the probes and returns without waiting for them. Every
// target yields exactly one Result unless its task terminates abnormally, in
// which case the error is reported by AwaitAll and the collectors.
func (d *Dispatcher) Dispatch(ctx context.Context, urls []string) *Handles {
	h := newHandles(len(urls))
	h.state.advance(StateDispatching)

	if len(urls) == 0 {
		close(h.results)
		h.finish(nil)
		return h
	}

	// own copies: callers may reuse the slice once Dispatch returns
	targets := make([]domain.Target, len(urls))
	for i, u := range urls {
		targets[i] = domain.Target{Index: i, URL: u}
	}

	// plain Group: one broken task must not cancel its siblings
	var g errgroup.Group
	if d.Workers == 0 || d.Workers >= len(targets) {
		for _, t := range targets {
			t := t
			g.Go(func() error {
				return d.runTask(ctx, t, h.results)
			})
		}
	} else {
		jobs := make(chan domain.Target, len(targets))
		for _, t := range targets {
			jobs <- t
		}
		close(jobs)
		for id := 0; id < d.Workers; id++ {
			id := id
			g.Go(func() error {
				return d.worker(ctx, id, jobs, h.results)
			})
		}
	}

	d.logger().Debug("batch_dispatched",
		zap.Int("targets", len(targets)),
		zap.Int("workers", d.Workers),
	)

	go func() {
		err := g.Wait()
		close(h.results)
		h.finish(err)
	}()
	return h
}

func (d *Dispatcher) worker(ctx context.Context, id int, jobs <-chan domain.Target, out chan<- Result) error {
	log := d.logger().With(zap.String("worker_id", strconv.Itoa(id)))
	log.Debug("worker_started")
	defer log.Debug("worker_stopped")

	var errs []error
	for t := range jobs {
		if err := d.runTask(ctx, t, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) runTask(ctx context.Context, t domain.Target, out chan<- Result) (err error) {
	m := d.metrics()
	m.ProbeInFlight(1)
	defer m.ProbeInFlight(-1)

	defer func() {
		if r := recover(); r != nil {
			d.logger().Error("task_panic",
				zap.Int("index", t.Index),
				zap.String("url", t.URL),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = &TaskError{Index: t.Index, URL: t.URL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	res := d.Prober.Probe(ctx, t.URL)
	res.URL = t.URL
	if res.Outcome.IsZero() {
		res.Outcome = domain.Failure(domain.KindUnknown, "probe reported no outcome")
	}
	m.ObserveProbe(res)

	d.logger().Debug("probe_done",
		zap.Int("index", t.Index),
		zap.String("url", t.URL),
		zap.Bool("ok", res.Outcome.OK()),
		zap.Int("status", res.Outcome.StatusCode()),
		zap.String("error", res.Outcome.Message()),
		zap.Duration("latency", res.Latency),
	)

	// capacity equals the target count, so this never blocks
	out <- Result{Index: t.Index, CheckResult: res}
	return nil
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Dispatcher) metrics() Metrics {
	if d.Metrics == nil {
		return nopMetrics{}
	}
	return d.Metrics
}
