package tinybots

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// gridConfig holds configuration during vendor grid construction.
type gridConfig struct {
	urlTemplate string
	dimensions  map[string][]string
	headers     map[string]string
	timeout     time.Duration
	detector    Detector
	detectorFor func(values map[string]string) Detector
	method      string
}

// GridOption configures vendor grid generation for [NewVendorGrid].
type GridOption func(*gridConfig) error

// WithURLTemplate sets the URL template for vendor generation.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each key becomes a template variable. Value order is priority order.
//
// Returns an error if the map is empty, any dimension has no values,
// or any value is an empty string.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithGridHeaders adds HTTP headers to all generated vendors.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridTimeout sets the HTTP request timeout for all generated vendors.
//
// Returns an error if the duration is negative.
// A duration of zero is valid and means use the vendor default.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGridDetector sets the same [Detector] for all generated vendors.
func WithGridDetector(d Detector) GridOption {
	return func(cfg *gridConfig) error {
		if d == nil {
			return errors.New("detector cannot be nil")
		}
		cfg.detector = d
		return nil
	}
}

// WithGridDetectorFor builds each vendor's [Detector] from its dimension
// values, for detectors whose expectations depend on the variant.
//
// Example:
//
//	tinybots.WithGridDetectorFor(func(v map[string]string) tinybots.Detector {
//	    return tinybots.ExpectJSONField(base, "product.gpu", v["gpu"])
//	})
func WithGridDetectorFor(fn func(values map[string]string) Detector) GridOption {
	return func(cfg *gridConfig) error {
		if fn == nil {
			return errors.New("detector builder cannot be nil")
		}
		cfg.detectorFor = fn
		return nil
	}
}

// WithGridMethod sets the HTTP method for all generated vendors.
//
// Returns an error if the method is not GET, HEAD, or POST.
func WithGridMethod(method string) GridOption {
	return func(cfg *gridConfig) error {
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodPost:
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET, HEAD, or POST")
		}
	}
}
