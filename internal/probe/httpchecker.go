package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hamed0406/sitecheck/internal/domain"
)

const DefaultTimeout = 5 * time.Second

// HTTPProber issues one GET per Probe call. A fresh client and transport are
// built for every call, so probes share no connection state.
type HTTPProber struct {
	Timeout   time.Duration
	UserAgent string

	// NewClient overrides client construction (tests).
	NewClient func(timeout time.Duration) *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProber{Timeout: timeout}
}

// NewClient builds a client whose connect, TLS handshake and response header
// waits are each bounded by timeout, with the whole exchange capped by the
// same value. Redirects are not followed: a 3xx status line is the answer.
func NewClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	return newClient(timeout, dialer.DialContext)
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func newClient(timeout time.Duration, dial dialFunc) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dial,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			DisableKeepAlives:     true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *HTTPProber) timeout() time.Duration {
	if h.Timeout <= 0 {
		return DefaultTimeout
	}
	return h.Timeout
}

func (h *HTTPProber) client() *http.Client {
	if h.NewClient != nil {
		return h.NewClient(h.timeout())
	}
	return NewClient(h.timeout())
}

func (h *HTTPProber) Probe(ctx context.Context, target string) domain.CheckResult {
	res := domain.CheckResult{URL: target, StartedAt: time.Now().UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		res.Outcome = domain.Failure(domain.KindInvalid, err.Error())
		return res
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	c := h.client()
	defer c.CloseIdleConnections()

	start := time.Now()
	resp, err := c.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		kind, msg := Classify(err), err.Error()
		if kind == domain.KindDNS {
			msg += " dns=" + DNSClass(err)
		}
		res.Outcome = domain.Failure(kind, msg)
		return res
	}
	// only the status line matters; the body is never read
	resp.Body.Close()

	if !domain.ValidStatus(resp.StatusCode) {
		res.Outcome = domain.Failure(domain.KindProtocol, fmt.Sprintf("malformed status code %d", resp.StatusCode))
		return res
	}
	res.Outcome = domain.Success(resp.StatusCode)
	return res
}
