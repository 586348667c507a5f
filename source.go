package tinybots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ahbrosha/tiny-bots/internal/poller"
	"github.com/google/uuid"
)

// StockSource answers whether the watched item is available.
//
// Check may perform network I/O. It must not report ordinary "not in stock"
// outcomes as failures: that is [Unavailable]. Transport and parse errors
// should be mapped to [CheckFailed] rather than escaping as panics.
type StockSource interface {
	Check(ctx context.Context) CheckResult
}

// SourceFunc adapts a plain function to [StockSource].
type SourceFunc func(ctx context.Context) CheckResult

// Check calls f(ctx).
func (f SourceFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// FirstAvailable composes sources into one [StockSource] that checks them in
// order and short-circuits on the first available result.
//
// Sources after the winner are not called. A failed source does not stop the
// scan; if nothing is available and at least one source failed, the result is
// [CheckFailed] with the joined reasons, otherwise [Unavailable].
//
// Example:
//
//	src := tinybots.FirstAvailable(alternate, mindfactory, nbb)
func FirstAvailable(sources ...StockSource) StockSource {
	return SourceFunc(func(ctx context.Context) CheckResult {
		var reasons []string
		var attempts []Attempt

		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				reasons = append(reasons, err.Error())
				break
			}

			r := src.Check(ctx)
			attempts = append(attempts, r.Attempts...)

			switch r.Outcome {
			case OutcomeAvailable:
				r.Attempts = attempts
				return r
			case OutcomeFailed:
				reasons = append(reasons, r.Reason)
			}
		}

		return settle(reasons, attempts)
	})
}

// settle builds the non-available result of an ordered scan.
func settle(reasons []string, attempts []Attempt) CheckResult {
	var r CheckResult
	if len(reasons) > 0 {
		r = CheckFailed(strings.Join(reasons, "; "))
	} else {
		r = Unavailable()
	}
	r.Attempts = attempts
	return r
}

// sourceConfig holds mutable state during HTTPSource construction.
type sourceConfig struct {
	userAgent string
	rps       float64
	burst     int
	logger    *slog.Logger
	client    *poller.Client
}

// SourceOption configures an [HTTPSource].
type SourceOption func(*sourceConfig) error

// WithUserAgent sets the User-Agent sent to every vendor. Several shops serve
// a bot wall to the Go default, so a browser user agent is used when unset.
func WithUserAgent(ua string) SourceOption {
	return func(cfg *sourceConfig) error {
		if strings.TrimSpace(ua) == "" {
			return errors.New("user agent cannot be empty")
		}
		cfg.userAgent = ua
		return nil
	}
}

// WithRateLimit caps outgoing vendor requests at rps requests per second
// with the given burst.
//
// Returns an error if rps is negative.
func WithRateLimit(rps float64, burst int) SourceOption {
	return func(cfg *sourceConfig) error {
		if rps < 0 {
			return errors.New("rate limit must not be negative")
		}
		cfg.rps = rps
		cfg.burst = burst
		return nil
	}
}

// WithSourceLogger sets the logger used for vendor attempts and recovered
// detector panics. Defaults to [slog.Default].
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(cfg *sourceConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// withClient injects a prebuilt client; used by tests.
func withClient(c *poller.Client) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.client = c
		return nil
	}
}

// HTTPSource is a [StockSource] over an ordered list of [Vendor] values.
//
// Vendors are queried sequentially in priority order. The first vendor whose
// detector reports in stock wins and no further vendors are queried in that
// check. A non-2xx response, a request error or an unknown detection is a
// failed attempt and the scan moves on to the next vendor.
type HTTPSource struct {
	vendors []Vendor
	client  *poller.Client
	logger  *slog.Logger
}

// NewHTTPSource creates an [HTTPSource] checking vendors in the given order.
//
// Returns an error if no vendors are given, vendor names are not unique, or
// an option is invalid.
func NewHTTPSource(vendors []Vendor, opts ...SourceOption) (*HTTPSource, error) {
	if len(vendors) == 0 {
		return nil, errors.New("at least one vendor is required")
	}

	seen := make(map[string]bool, len(vendors))
	for _, v := range vendors {
		if seen[v.name] {
			return nil, fmt.Errorf("duplicate vendor name: %q", v.name)
		}
		seen[v.name] = true
	}

	cfg := &sourceConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.client
	if client == nil {
		client = poller.NewClient(poller.ClientOptions{
			UserAgent:         cfg.userAgent,
			RequestsPerSecond: cfg.rps,
			Burst:             cfg.burst,
		})
	}

	vs := make([]Vendor, len(vendors))
	copy(vs, vendors)

	return &HTTPSource{vendors: vs, client: client, logger: logger}, nil
}

// Vendors returns a copy of the configured vendors in priority order.
func (s *HTTPSource) Vendors() []Vendor {
	cp := make([]Vendor, len(s.vendors))
	copy(cp, s.vendors)
	return cp
}

// Check queries the vendors in order. See [HTTPSource] for the semantics.
func (s *HTTPSource) Check(ctx context.Context) CheckResult {
	var reasons []string
	attempts := make([]Attempt, 0, len(s.vendors))

	for _, v := range s.vendors {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, err.Error())
			break
		}

		a := s.query(ctx, v)
		attempts = append(attempts, a)

		logAttrs := []any{
			"vendor", a.Vendor,
			"outcome", a.Outcome,
			"status_code", a.StatusCode,
			"latency_ms", a.Latency.Milliseconds(),
		}

		switch a.Outcome {
		case OutcomeAvailable:
			s.logger.Debug("vendor in stock", logAttrs...)
			r := Available(v.name).WithMismatches(a.Mismatches...)
			r.Attempts = attempts
			return r
		case OutcomeFailed:
			s.logger.Warn("vendor check failed", append(logAttrs, "reason", a.Reason)...)
			reasons = append(reasons, v.name+": "+a.Reason)
		default:
			s.logger.Debug("vendor out of stock", logAttrs...)
		}
	}

	return settle(reasons, attempts)
}

// Close releases idle connections held by the source's HTTP client.
func (s *HTTPSource) Close() {
	s.client.Close()
}

// query performs one vendor request and interprets it.
func (s *HTTPSource) query(ctx context.Context, v Vendor) Attempt {
	resp := s.client.Fetch(ctx, v.method, v.url, v.headers, v.timeout)

	a := Attempt{
		Vendor:     v.name,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		CheckedAt:  time.Now(),
	}

	if resp.Error != nil {
		a.Outcome = OutcomeFailed
		a.Reason = resp.Error.Error()
		return a
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.Outcome = OutcomeFailed
		a.Reason = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return a
	}

	det, err := s.safeDetect(v.detector, resp.Body, resp.StatusCode)
	if err != nil {
		a.Outcome = OutcomeFailed
		a.Reason = err.Error()
		return a
	}

	switch det.Stock {
	case StockIn:
		a.Outcome = OutcomeAvailable
		a.Mismatches = det.Mismatches
	case StockOut:
		a.Outcome = OutcomeUnavailable
	default:
		a.Outcome = OutcomeFailed
		a.Reason = "could not interpret response"
	}
	return a
}

// safeDetect calls the detector with panic recovery.
// If the detector panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *HTTPSource) safeDetect(d Detector, body []byte, statusCode int) (det Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("detector panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			det = Unknown()
			err = fmt.Errorf("detector panic (correlation_id: %s)", correlationID)
		}
	}()
	return d(body, statusCode), nil
}
