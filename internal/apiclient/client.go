// Package apiclient is the shared HTTP layer for the read-only sports APIs.
package apiclient

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/metrics"
)

const maxErrorBody = 512

// Client performs GET requests against one base URL. Every request carries
// its own timeout; when it fires the request is aborted and reported as a
// NetworkError.
type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a client for baseURL.
func New(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	metrics.Fetches.Add(1)
	body, err := c.do(ctx, url)
	if err != nil {
		metrics.FetchErrors.Add(1)
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if config.Debug() {
		log.Printf("apiclient: GET %s", url)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(ctx, url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(ctx, url, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{URL: url, RetryAfter: retryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &HTTPStatusError{URL: url, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// GetJSON performs a GET and decodes the body into out. A body that does
// not decode is a MalformedResponseError.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{URL: c.baseURL + path, Err: err}
	}
	return nil
}

func networkError(ctx context.Context, url string, err error) error {
	timeout := errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
	return &NetworkError{URL: url, Timeout: timeout, Err: err}
}

// retryAfter reads a Retry-After header given either as delay seconds or
// as an HTTP date. Anything else waits one second.
func retryAfter(v string, now time.Time) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return time.Second
}
