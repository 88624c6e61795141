package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Target is one URL to be checked. Index is its position in the input list.
type Target struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// CheckResult is the write-once outcome of probing one target.
type CheckResult struct {
	URL       string        `json:"url"`
	Outcome   Outcome       `json:"-"`
	Latency   time.Duration `json:"-"`
	StartedAt time.Time     `json:"started_at"`
}

// Line renders the result as "url, status_or_error, latency".
func (r CheckResult) Line() string {
	return fmt.Sprintf("%s, %s, %s", r.URL, r.Outcome, r.Latency.Round(time.Millisecond))
}

// LatencyMS is the latency in fractional milliseconds.
func (r CheckResult) LatencyMS() float64 {
	return float64(r.Latency) / float64(time.Millisecond)
}

// LatencyFromMS is the inverse of LatencyMS, rounded to the nanosecond.
func LatencyFromMS(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

// Batch is one single-pass run over a target list.
type Batch struct {
	ID         uuid.UUID     `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Timeout    time.Duration `json:"timeout"`
	Results    []CheckResult `json:"results"`
}

func NewBatch(timeout time.Duration) *Batch {
	return &Batch{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Timeout:   timeout,
	}
}

type Summary struct {
	Total   int           `json:"total"`
	OK      int           `json:"ok"`
	Failed  int           `json:"failed"`
	Non2xx  int           `json:"non_2xx"`
	Elapsed time.Duration `json:"-"`
}

func (b *Batch) Summary() Summary {
	s := Summary{Total: len(b.Results), Elapsed: b.FinishedAt.Sub(b.StartedAt)}
	for _, r := range b.Results {
		if !r.Outcome.OK() {
			s.Failed++
			continue
		}
		s.OK++
		if c := r.Outcome.StatusCode(); c < 200 || c > 299 {
			s.Non2xx++
		}
	}
	return s
}
