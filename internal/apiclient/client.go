// Package apiclient talks to the sitecheck API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/sitecheck/internal/domain"
	"github.com/hamed0406/sitecheck/internal/repo"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New returns a client with a generous timeout: a check request lasts as
// long as the slowest probe in the batch.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

type checkRequest struct {
	URLs    []string `json:"urls"`
	Ordered bool     `json:"ordered"`
}

// RunChecks asks the API to check urls once and returns the finished batch.
func (c *Client) RunChecks(ctx context.Context, urls []string, ordered bool) (*domain.Batch, error) {
	var b domain.Batch
	if err := c.do(ctx, http.MethodPost, "/api/checks", checkRequest{URLs: urls, Ordered: ordered}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) Latest(ctx context.Context) (*domain.Batch, error) {
	var b domain.Batch
	if err := c.do(ctx, http.MethodGet, "/api/batches/latest", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	var b domain.Batch
	if err := c.do(ctx, http.MethodGet, "/api/batches/"+id.String(), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) List(ctx context.Context, limit int) ([]repo.BatchInfo, error) {
	path := "/api/batches"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out []repo.BatchInfo
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
