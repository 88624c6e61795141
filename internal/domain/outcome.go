package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies a transport failure.
type FailureKind string

const (
	KindDNS      FailureKind = "dns"
	KindConnect  FailureKind = "connect"
	KindTLS      FailureKind = "tls"
	KindTimeout  FailureKind = "timeout"
	KindProtocol FailureKind = "protocol"
	KindCanceled FailureKind = "canceled"
	KindInvalid  FailureKind = "invalid"
	KindUnknown  FailureKind = "unknown"
)

// Outcome holds either an HTTP status (the exchange completed) or a failure
// description (no status line was obtained). Never both, never neither.
type Outcome struct {
	status  int
	kind    FailureKind
	message string
}

// Success records a completed exchange. Any status in [100,599] counts,
// including 4xx and 5xx. Callers check ValidStatus first.
func Success(status int) Outcome {
	return Outcome{status: status}
}

// ValidStatus reports whether code is a status line a completed exchange can
// carry.
func ValidStatus(code int) bool { return code >= 100 && code <= 599 }

// Failure records a transport failure.
func Failure(kind FailureKind, message string) Outcome {
	if kind == "" {
		kind = KindUnknown
	}
	if message == "" {
		message = string(kind)
	}
	return Outcome{kind: kind, message: message}
}

func (o Outcome) OK() bool { return o.kind == "" && o.status != 0 }

// StatusCode is zero for failures.
func (o Outcome) StatusCode() int { return o.status }

func (o Outcome) Kind() FailureKind { return o.kind }

// Message is empty for successes.
func (o Outcome) Message() string { return o.message }

func (o Outcome) IsZero() bool { return o.status == 0 && o.kind == "" }

func (o Outcome) StatusClass() string {
	if !o.OK() {
		return "error"
	}
	return fmt.Sprintf("%dxx", o.status/100)
}

func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("%d", o.status)
	}
	return fmt.Sprintf("error(%s): %s", o.kind, o.message)
}

type resultJSON struct {
	URL       string      `json:"url"`
	OK        bool        `json:"ok"`
	Status    int         `json:"status,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      FailureKind `json:"kind,omitempty"`
	LatencyMS float64     `json:"latency_ms"`
	StartedAt time.Time   `json:"started_at"`
}

func (r CheckResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		URL:       r.URL,
		OK:        r.Outcome.OK(),
		Status:    r.Outcome.StatusCode(),
		Error:     r.Outcome.Message(),
		Kind:      r.Outcome.Kind(),
		LatencyMS: r.LatencyMS(),
		StartedAt: r.StartedAt,
	})
}

func (r *CheckResult) UnmarshalJSON(b []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.OK && raw.Status == 0:
		return errors.New("result marked ok without a status")
	case raw.OK && !ValidStatus(raw.Status):
		return fmt.Errorf("status %d out of range", raw.Status)
	case raw.OK:
		r.Outcome = Success(raw.Status)
	default:
		r.Outcome = Failure(raw.Kind, raw.Error)
	}
	r.URL = raw.URL
	r.Latency = LatencyFromMS(raw.LatencyMS)
	r.StartedAt = raw.StartedAt
	return nil
}
