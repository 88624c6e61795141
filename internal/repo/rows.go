package repo

import (
	"fmt"
	"time"

	"github.com/hamed0406/sitecheck/internal/domain"
)

// ResultRow is the column form of a CheckResult shared by the SQL stores.
// Status is nil for failures, Error and Kind are empty for successes.
type ResultRow struct {
	Position  int
	URL       string
	OK        bool
	Status    *int
	Error     string
	Kind      string
	LatencyMS float64
	StartedAt time.Time
}

func RowOf(pos int, r domain.CheckResult) ResultRow {
	row := ResultRow{
		Position:  pos,
		URL:       r.URL,
		OK:        r.Outcome.OK(),
		Error:     r.Outcome.Message(),
		Kind:      string(r.Outcome.Kind()),
		LatencyMS: r.LatencyMS(),
		StartedAt: r.StartedAt,
	}
	if row.OK {
		v := r.Outcome.StatusCode()
		row.Status = &v
	}
	return row
}

// Result rebuilds the CheckResult. A success row must carry a status in
// [100,599].
func (row ResultRow) Result() (domain.CheckResult, error) {
	out := domain.CheckResult{
		URL:       row.URL,
		Latency:   domain.LatencyFromMS(row.LatencyMS),
		StartedAt: row.StartedAt,
	}
	if !row.OK {
		out.Outcome = domain.Failure(domain.FailureKind(row.Kind), row.Error)
		return out, nil
	}
	if row.Status == nil {
		return out, fmt.Errorf("result %d (%s): ok without a status", row.Position, row.URL)
	}
	if !domain.ValidStatus(*row.Status) {
		return out, fmt.Errorf("result %d (%s): status %d out of range", row.Position, row.URL, *row.Status)
	}
	out.Outcome = domain.Success(*row.Status)
	return out, nil
}
