package batch

import (
	"errors"
	"fmt"

	"github.com/hamed0406/sitecheck/internal/domain"
)

// Collect drains the result channel until every task has terminated and
// returns the results in arrival order. A short count is reported as
// ErrIncomplete together with the task error that caused it.
//
// Handles has a single consumer: call Collect or CollectOrdered once.
func Collect(h *Handles) ([]domain.CheckResult, error) {
	h.state.advance(StateCollecting)

	out := make([]domain.CheckResult, 0, h.expected)
	for r := range h.results {
		out = append(out, r.CheckResult)
	}
	return out, h.drain(len(out), nil)
}

// CollectOrdered is Collect with results placed at their input position.
// Positions whose task never reported are left out of the returned slice.
func CollectOrdered(h *Handles) ([]domain.CheckResult, error) {
	h.state.advance(StateCollecting)

	slots := make([]domain.CheckResult, h.expected)
	filled := make([]bool, h.expected)
	var errs []error
	n := 0
	for r := range h.results {
		if r.Index < 0 || r.Index >= h.expected {
			errs = append(errs, fmt.Errorf("result for %s has index %d out of range", r.URL, r.Index))
			continue
		}
		if filled[r.Index] {
			errs = append(errs, fmt.Errorf("duplicate result for index %d (%s)", r.Index, r.URL))
			continue
		}
		slots[r.Index] = r.CheckResult
		filled[r.Index] = true
		n++
	}

	out := slots
	if n != h.expected {
		out = make([]domain.CheckResult, 0, n)
		for i, ok := range filled {
			if ok {
				out = append(out, slots[i])
			}
		}
	}
	return out, h.drain(n, errs)
}

// drain records that the channel has been consumed and builds the
// collection error.
func (h *Handles) drain(got int, errs []error) error {
	<-h.done
	h.drained.Store(true)
	h.state.advance(StateAwaitingCompletion)
	h.settle()

	if got != h.expected {
		errs = append([]error{fmt.Errorf("%w: %d of %d results", ErrIncomplete, got, h.expected)}, errs...)
	}
	if h.err != nil {
		errs = append(errs, h.err)
	}
	return errors.Join(errs...)
}
