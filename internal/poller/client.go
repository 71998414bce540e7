package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxStatusBodySize bounds a status document. Anything larger is an error.
const maxStatusBodySize = 1 << 20

const statusIdleTimeout = 60 * time.Second

var (
	// ErrUnexpectedStatus is wrapped by [Response.Error] when a status
	// endpoint answers outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrBodyTooLarge is wrapped by [Response.Error] when a status document
	// exceeds 1MB.
	ErrBodyTooLarge = errors.New("status response exceeds 1MB")
)

// Response is the answer of one job's status endpoint.
type Response struct {
	// Body is the response body. It is kept for non-2xx answers so the
	// error page can be logged, and is nil when the body was too large.
	Body []byte

	// StatusCode is zero if no response arrived.
	StatusCode int

	Latency time.Duration

	// Error is a transport failure, a body read failure, [ErrBodyTooLarge]
	// or [ErrUnexpectedStatus]. A nil Error means Body holds a 2xx status
	// document ready to decode.
	Error error
}

// Client fetches job status documents.
//
// All jobs of a page are usually served by one host, so the transport keeps
// an idle connection for every request that may be in flight at once and
// never caps connections per host. Timeouts are applied per request.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a [Client] sized for conns concurrent requests.
func NewClient(conns int) *Client {
	if conns < 1 {
		conns = 1
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        conns,
				MaxIdleConnsPerHost: conns,
				IdleConnTimeout:     statusIdleTimeout,
			},
		},
	}
}

// Fetch GETs a job's status document.
//
// A zero timeout relies on ctx alone. JSON is requested through the Accept
// header unless headers override it. Fetch always returns a Response; a
// failure of any kind, including a non-2xx status, is reported in its Error
// field.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{Latency: time.Since(start), Error: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{Latency: time.Since(start), Error: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	out := Response{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBodySize+1))
	out.Latency = time.Since(start)
	switch {
	case err != nil:
		out.Error = fmt.Errorf("failed to read response body: %w", err)
	case len(body) > maxStatusBodySize:
		out.Error = ErrBodyTooLarge
	default:
		out.Body = body
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			out.Error = fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
		}
	}
	return out
}

// Close drops idle connections. The client stays usable. Safe on a nil
// client and safe to call repeatedly.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
