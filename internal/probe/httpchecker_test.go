package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/sitecheck/internal/domain"
)

func TestHTTPProber_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("want GET, got %s", r.Method)
		}
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	p := NewHTTPProber(2 * time.Second)
	out := p.Probe(context.Background(), s.URL)
	if !out.Outcome.OK() {
		t.Fatalf("want success, got %+v", out)
	}
	if out.Outcome.StatusCode() != 200 {
		t.Fatalf("want status 200, got %d", out.Outcome.StatusCode())
	}
	if out.URL != s.URL {
		t.Fatalf("url not carried through: %q", out.URL)
	}
	if out.Latency <= 0 {
		t.Fatalf("latency should be > 0, got %v", out.Latency)
	}
	if out.StartedAt.IsZero() {
		t.Fatalf("started_at not set")
	}
}

func TestHTTPProber_Non2xxIsStillSuccess(t *testing.T) {
	for _, code := range []int{404, 500, 503} {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", code)
		}))

		out := NewHTTPProber(2*time.Second).Probe(context.Background(), s.URL)
		s.Close()

		if !out.Outcome.OK() {
			t.Fatalf("status %d: want Success, got failure %q", code, out.Outcome.Message())
		}
		if out.Outcome.StatusCode() != code {
			t.Fatalf("want status %d, got %d", code, out.Outcome.StatusCode())
		}
	}
}

func TestHTTPProber_TimeoutIsFailure(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(200)
	}))
	defer s.Close()
	defer close(release)

	p := NewHTTPProber(50 * time.Millisecond)
	start := time.Now()
	out := p.Probe(context.Background(), s.URL)
	elapsed := time.Since(start)

	if out.Outcome.OK() {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.Outcome.StatusCode() != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.Outcome.StatusCode())
	}
	if out.Outcome.Kind() != domain.KindTimeout {
		t.Fatalf("want timeout kind, got %q (%s)", out.Outcome.Kind(), out.Outcome.Message())
	}
	if elapsed > time.Second {
		t.Fatalf("probe exceeded its timeout bound: %v", elapsed)
	}
	if out.Latency <= 0 {
		t.Fatalf("latency must be recorded on failure")
	}
}

func TestHTTPProber_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	out := NewHTTPProber(time.Second).Probe(context.Background(), "http://"+addr)
	if out.Outcome.OK() {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Outcome.Kind() != domain.KindConnect {
		t.Fatalf("want connect kind, got %q (%s)", out.Outcome.Kind(), out.Outcome.Message())
	}
}

func TestHTTPProber_UntrustedCertificateIsTLSFailure(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPProber(2*time.Second).Probe(context.Background(), s.URL)
	if out.Outcome.OK() {
		t.Fatalf("want tls failure, got %+v", out)
	}
	if out.Outcome.Kind() != domain.KindTLS {
		t.Fatalf("want tls kind, got %q (%s)", out.Outcome.Kind(), out.Outcome.Message())
	}
}

func TestHTTPProber_InvalidURL(t *testing.T) {
	out := NewHTTPProber(time.Second).Probe(context.Background(), "http://[::1")
	if out.Outcome.OK() || out.Outcome.Kind() != domain.KindInvalid {
		t.Fatalf("want invalid failure, got %+v", out)
	}
}

func TestHTTPProber_CanceledContext(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewHTTPProber(time.Second).Probe(ctx, s.URL)
	if out.Outcome.OK() || out.Outcome.Kind() != domain.KindCanceled {
		t.Fatalf("want canceled failure, got %+v", out)
	}
}

func TestHTTPProber_BuildsClientPerProbe(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	}))
	defer s.Close()

	built := 0
	p := &HTTPProber{
		Timeout: time.Second,
		NewClient: func(timeout time.Duration) *http.Client {
			built++
			if timeout != time.Second {
				t.Errorf("client built with %v", timeout)
			}
			return NewClient(timeout)
		},
	}
	p.Probe(context.Background(), s.URL)
	p.Probe(context.Background(), s.URL)
	if built != 2 {
		t.Fatalf("want one client per probe, got %d", built)
	}
}

func TestHTTPProber_SendsUserAgent(t *testing.T) {
	var got string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.UserAgent()
	}))
	defer s.Close()

	p := NewHTTPProber(time.Second)
	p.UserAgent = "sitecheck/test"
	p.Probe(context.Background(), s.URL)
	if got != "sitecheck/test" {
		t.Fatalf("user agent=%q", got)
	}
}

func TestHTTPProber_DNSFailureCarriesClass(t *testing.T) {
	p := &HTTPProber{
		Timeout: time.Second,
		NewClient: func(timeout time.Duration) *http.Client {
			return &http.Client{
				Timeout: timeout,
				Transport: &http.Transport{
					DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
						return nil, &net.OpError{Op: "dial", Net: network,
							Err: &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}}
					},
				},
			}
		},
	}

	res := p.Probe(context.Background(), "http://nope.invalid")
	if res.Outcome.OK() || res.Outcome.Kind() != domain.KindDNS {
		t.Fatalf("want dns failure, got %v", res.Outcome)
	}
	if !strings.HasSuffix(res.Outcome.Message(), "dns=NXDOMAIN") {
		t.Fatalf("message missing dns class: %q", res.Outcome.Message())
	}
}

func TestHTTPProber_RedirectIsSuccess(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, r.URL.String(), http.StatusFound)
	}))
	defer s.Close()

	out := NewHTTPProber(2*time.Second).Probe(context.Background(), s.URL+"/loop")
	if out.Outcome != domain.Success(http.StatusFound) {
		t.Fatalf("want Success(302), got %v", out.Outcome)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("redirect followed: server hit %d times", n)
	}
}

func TestHTTPProber_RedirectToDeadHostIsSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	dead := "http://" + ln.Addr().String() + "/"
	ln.Close()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dead, http.StatusMovedPermanently)
	}))
	defer s.Close()

	out := NewHTTPProber(2*time.Second).Probe(context.Background(), s.URL)
	if out.Outcome != domain.Success(http.StatusMovedPermanently) {
		t.Fatalf("want Success(301), got %v", out.Outcome)
	}
}

func TestHTTPProber_ConnectTimeoutIsBounded(t *testing.T) {
	const timeout = 100 * time.Millisecond
	// a black-hole address: the dial never completes on its own
	blackHole := func(ctx context.Context, network, addr string) (net.Conn, error) {
		<-ctx.Done()
		return nil, &net.OpError{Op: "dial", Net: network, Err: ctx.Err()}
	}
	p := &HTTPProber{
		Timeout: timeout,
		NewClient: func(timeout time.Duration) *http.Client {
			return newClient(timeout, blackHole)
		},
	}

	start := time.Now()
	out := p.Probe(context.Background(), "http://10.255.255.1")
	elapsed := time.Since(start)

	if out.Outcome.OK() || out.Outcome.Kind() != domain.KindTimeout {
		t.Fatalf("want timeout failure, got %v", out.Outcome)
	}
	if elapsed > timeout+time.Second {
		t.Fatalf("dial outlived its timeout: %v", elapsed)
	}
}
