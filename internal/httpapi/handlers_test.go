package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitecheck/internal/batch"
	"github.com/hamed0406/sitecheck/internal/domain"
	apimw "github.com/hamed0406/sitecheck/internal/httpapi/middleware"
	"github.com/hamed0406/sitecheck/internal/metrics"
	"github.com/hamed0406/sitecheck/internal/probe"
	"github.com/hamed0406/sitecheck/internal/repo/memory"
)

// ---- test helpers ----

// fakeProber answers 200 for every URL except those containing "down".
func fakeProber() probe.Prober {
	return probe.ProberFunc(func(_ context.Context, url string) domain.CheckResult {
		res := domain.CheckResult{URL: url, Latency: 7 * time.Millisecond, StartedAt: time.Now().UTC()}
		if strings.Contains(url, "down") {
			res.Outcome = domain.Failure(domain.KindConnect, "connection refused")
		} else {
			res.Outcome = domain.Success(200)
		}
		return res
	})
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	m := metrics.NewCollector()
	runner := batch.NewRunner(log, batch.NewDispatcher(fakeProber(), 0, log, m), store, m, time.Second, false)

	srv := NewServer(log, runner, store, m.Handler())
	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}

	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, Limits{10_000, 10_000, 10_000, 10_000}))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type batchBody struct {
	ID      string               `json:"id"`
	Results []domain.CheckResult `json:"results"`
	Summary domain.Summary       `json:"summary"`
}

// ---- tests ----

func TestRunChecks_ReturnsEveryTarget(t *testing.T) {
	ts := setupServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/api/checks", "adm_test",
		`{"urls":["https://a.example","https://down.example","https://a.example"],"ordered":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var got batchBody
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Results) != 3 {
		t.Fatalf("want 3 results, got %d", len(got.Results))
	}
	if got.Results[1].URL != "https://down.example" || got.Results[1].Outcome.OK() {
		t.Fatalf("ordered results must keep input position: %+v", got.Results)
	}
	if got.Results[1].Outcome.Kind() != domain.KindConnect {
		t.Fatalf("failure kind lost: %v", got.Results[1].Outcome)
	}
	if got.Summary.Total != 3 || got.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
}

func TestRunChecks_RejectsBadInput(t *testing.T) {
	ts := setupServer(t)

	cases := map[string]string{
		"not json":      `{`,
		"empty list":    `{"urls":[]}`,
		"missing urls":  `{}`,
		"not a url":     `{"urls":["nope"]}`,
		"bad scheme":    `{"urls":["ftp://files.example"]}`,
		"unknown field": `{"urls":["https://a.example"],"retries":3}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/api/checks", "adm_test", body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("want 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestRunChecks_RequiresAdmin(t *testing.T) {
	ts := setupServer(t)
	body := `{"urls":["https://a.example"]}`

	if resp := do(t, http.MethodPost, ts.URL+"/api/checks", "pub_test", body); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("public key: want 403, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/checks", "", body); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: want 401, got %d", resp.StatusCode)
	}
}

func TestBatches_ListLatestGet(t *testing.T) {
	ts := setupServer(t)

	// nothing stored yet
	if resp := do(t, http.MethodGet, ts.URL+"/api/batches/latest", "pub_test", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 before any batch, got %d", resp.StatusCode)
	}

	var created batchBody
	resp := do(t, http.MethodPost, ts.URL+"/api/checks", "adm_test", `{"urls":["https://a.example"]}`)
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	// list (public)
	respL := do(t, http.MethodGet, ts.URL+"/api/batches?limit=5", "pub_test", "")
	if respL.StatusCode != 200 {
		t.Fatalf("want 200 list, got %d", respL.StatusCode)
	}
	var list []struct {
		ID    string `json:"id"`
		Total int    `json:"total"`
	}
	if err := json.NewDecoder(respL.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID || list[0].Total != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	// latest and by id
	for _, path := range []string{"/api/batches/latest", "/api/batches/" + created.ID} {
		r := do(t, http.MethodGet, ts.URL+path, "pub_test", "")
		if r.StatusCode != 200 {
			t.Fatalf("%s: want 200, got %d", path, r.StatusCode)
		}
		var got batchBody
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if got.ID != created.ID || len(got.Results) != 1 || got.Results[0].Outcome.StatusCode() != 200 {
			t.Fatalf("%s: unexpected batch %+v", path, got)
		}
	}

	if r := do(t, http.MethodGet, ts.URL+"/api/batches/not-a-uuid", "pub_test", ""); r.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id: want 400, got %d", r.StatusCode)
	}
	if r := do(t, http.MethodGet, ts.URL+"/api/batches/6f1c2a43-5b3e-4bb0-9d8a-0d3c7f1e2a10", "pub_test", ""); r.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id: want 404, got %d", r.StatusCode)
	}
	if r := do(t, http.MethodGet, ts.URL+"/api/batches?limit=abc", "pub_test", ""); r.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit: want 400, got %d", r.StatusCode)
	}
	if r := do(t, http.MethodGet, ts.URL+"/api/batches", "", ""); r.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: want 401, got %d", r.StatusCode)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	ts := setupServer(t)

	if r := do(t, http.MethodGet, ts.URL+"/healthz", "", ""); r.StatusCode != 200 {
		t.Fatalf("healthz: %d", r.StatusCode)
	}

	do(t, http.MethodPost, ts.URL+"/api/checks", "adm_test", `{"urls":["https://a.example"]}`)

	r := do(t, http.MethodGet, ts.URL+"/metrics", "", "")
	if r.StatusCode != 200 {
		t.Fatalf("metrics: %d", r.StatusCode)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r.Body)
	if !strings.Contains(buf.String(), "sitecheck_batches_total") {
		t.Fatalf("metrics missing batch counter")
	}
}

func TestRouter_RateLimitsAPI(t *testing.T) {
	log := zap.NewNop()
	store := memory.New()
	runner := batch.NewRunner(log, batch.NewDispatcher(fakeProber(), 0, log, nil), store, nil, time.Second, false)
	srv := NewServer(log, runner, store, nil)
	ts := httptest.NewServer(srv.Router(apimw.Keys{}, Limits{PublicRPM: 1, PublicBurst: 1}))
	defer ts.Close()

	if r := do(t, http.MethodGet, ts.URL+"/api/batches", "", ""); r.StatusCode != 200 {
		t.Fatalf("first: %d", r.StatusCode)
	}
	if r := do(t, http.MethodGet, ts.URL+"/api/batches", "", ""); r.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second: want 429, got %d", r.StatusCode)
	}
}

func TestRouter_CORSAllowedOrigins(t *testing.T) {
	log := zap.NewNop()
	store := memory.New()
	runner := batch.NewRunner(log, batch.NewDispatcher(fakeProber(), 0, log, nil), store, nil, time.Second, false)
	srv := NewServer(log, runner, store, nil)
	srv.AllowedOrigins = []string{"https://dash.example"}
	ts := httptest.NewServer(srv.Router(apimw.Keys{}, Limits{}))
	defer ts.Close()

	for origin, want := range map[string]string{
		"https://dash.example":  "https://dash.example",
		"https://other.example": "",
	} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/batches", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != want {
			t.Fatalf("origin %s: allow-origin=%q want %q", origin, got, want)
		}
	}
}
