package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxPageSize caps how much HTML is read from a URL source.
const maxPageSize = 10 << 20 // 10MB

// Source opens the raw HTML of the job page. Callers close the reader.
type Source func(ctx context.Context) (io.ReadCloser, error)

// FileSource reads the page from a local file on every load.
func FileSource(path string) Source {
	return func(ctx context.Context) (io.ReadCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open page file: %w", err)
		}
		return f, nil
	}
}

// URLSource fetches the page with a GET request on every load.
// Non-2xx responses are errors. If client is nil, http.DefaultClient is used.
func URLSource(client *http.Client, rawURL string) Source {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "text/html")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code %d fetching %s", resp.StatusCode, rawURL)
		}
		return limitedBody{Reader: io.LimitReader(resp.Body, maxPageSize), Closer: resp.Body}, nil
	}
}

// StringSource serves a fixed HTML string. Each load parses a fresh copy.
func StringSource(html string) Source {
	return func(ctx context.Context) (io.ReadCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(html)), nil
	}
}

type limitedBody struct {
	io.Reader
	io.Closer
}
