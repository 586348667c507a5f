package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; vendor checks are sequential so these are generous
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// DefaultUserAgent is sent when no user agent is configured. Several shops
// serve a bot wall to the Go default user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Response holds the result of an HTTP request made by [Client].
//
// Response captures the body (limited to 1MB), status code, latency, and any
// error that occurred.
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request, including any time
	// spent waiting on the rate limiter.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// ClientOptions configures [NewClient].
type ClientOptions struct {
	// UserAgent overrides [DefaultUserAgent].
	UserAgent string

	// RequestsPerSecond limits outgoing requests across all vendors.
	// Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter bucket size. Defaults to 1.
	Burst int
}

// Client is a resty wrapper used for vendor checks, notifications and link visits.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are limited to 1MB.
type Client struct {
	rc      *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a new [Client].
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient(opts ClientOptions) *Client {
	rc := resty.New().
		SetTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		}).
		SetDoNotParseResponse(true)

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	rc.SetHeader("User-Agent", ua)

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{rc: rc, limiter: limiter}
}

// Resty exposes the underlying resty client for callers that need a request
// shape Fetch does not cover, such as JSON POST bodies.
func (c *Client) Resty() *resty.Client {
	return c.rc
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. The timeout is applied via context
// cancellation and also bounds the wait on the rate limiter.
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{
				Latency: time.Since(start),
				Error:   fmt.Errorf("rate limiter: %w", err),
			}
		}
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		Execute(method, url)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}

	raw := resp.RawBody()
	if raw == nil {
		return Response{
			StatusCode: resp.StatusCode(),
			Latency:    time.Since(start),
		}
	}
	defer func() { _ = raw.Close() }()

	body, err := io.ReadAll(io.LimitReader(raw, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode(),
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode(),
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.rc == nil {
		return
	}
	if hc := c.rc.GetClient(); hc != nil {
		hc.CloseIdleConnections()
	}
}
