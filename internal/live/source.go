package live

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Source opens a push channel. Tests and the preview mode substitute their
// own implementation for the network one.
type Source interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPSource opens server-sent event channels over HTTP.
type HTTPSource struct {
	Client    *http.Client
	UserAgent string
}

// Open issues the request and returns the response body once the server
// accepts the channel. The body stays open until ctx is cancelled or the
// server ends it.
func (s *HTTPSource) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
