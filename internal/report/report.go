// Package report renders batch results for people and files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/sitecheck/internal/domain"
)

// WriteLines writes one "url, status_or_error, latency" line per result and
// a closing summary line.
func WriteLines(w io.Writer, b *domain.Batch) error {
	for _, r := range b.Results {
		if _, err := fmt.Fprintln(w, r.Line()); err != nil {
			return err
		}
	}
	s := b.Summary()
	_, err := fmt.Fprintf(w, "checked %d url(s): %d ok (%d non-2xx), %d failed in %s\n",
		s.Total, s.OK, s.Non2xx, s.Failed, s.Elapsed.Round(time.Millisecond))
	return err
}

// WriteCSV writes a header row followed by one row per result.
func WriteCSV(w io.Writer, b *domain.Batch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"url", "ok", "status", "error", "kind", "latency_ms", "started_at"}); err != nil {
		return err
	}
	for _, r := range b.Results {
		status := ""
		if r.Outcome.OK() {
			status = strconv.Itoa(r.Outcome.StatusCode())
		}
		rec := []string{
			r.URL,
			strconv.FormatBool(r.Outcome.OK()),
			status,
			r.Outcome.Message(),
			string(r.Outcome.Kind()),
			strconv.FormatFloat(r.LatencyMS(), 'f', 3, 64),
			r.StartedAt.Format(time.RFC3339Nano),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type batchJSON struct {
	*domain.Batch
	Summary domain.Summary `json:"summary"`
}

// WriteJSON writes the batch with its summary as indented JSON.
func WriteJSON(w io.Writer, b *domain.Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(batchJSON{Batch: b, Summary: b.Summary()})
}

// WriteFile writes b to path, choosing the format from the extension:
// .json, .csv, anything else gets the line format.
func WriteFile(path string, b *domain.Batch) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close results file: %w", cerr)
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = WriteJSON(f, b)
	case ".csv":
		err = WriteCSV(f, b)
	default:
		err = WriteLines(f, b)
	}
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
