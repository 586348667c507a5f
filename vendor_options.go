package tinybots

import (
	"errors"
	"net/http"
	"time"
)

// vendorConfig holds mutable state during vendor construction.
type vendorConfig struct {
	headers  map[string]string
	timeout  time.Duration
	detector Detector
	method   string
}

// VendorOption is a function that configures a [Vendor] during construction.
//
// Built-in options: [WithDetector], [WithHeaders], [WithTimeout], [WithMethod].
type VendorOption func(*vendorConfig) error

// WithDetector sets the [Detector] that reads stock from the vendor's response.
//
// Returns an error if d is nil.
func WithDetector(d Detector) VendorOption {
	return func(cfg *vendorConfig) error {
		if d == nil {
			return errors.New("detector cannot be nil")
		}
		cfg.detector = d
		return nil
	}
}

// WithHeaders adds custom HTTP headers to requests for this vendor.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
// A "User-Agent" header here overrides the client-wide user agent.
//
// Example:
//
//	v, err := tinybots.NewVendor("NBB", url,
//	    tinybots.WithHeaders("Accept-Language", "de-DE"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) VendorOption {
	return func(cfg *vendorConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the HTTP request timeout for this vendor.
//
// A request exceeding the timeout is a failed attempt; later vendors are
// still checked in the same cycle. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) VendorOption {
	return func(cfg *vendorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMethod sets the HTTP method for stock requests.
//
// Supported methods are GET (default), HEAD, and POST.
//
// Returns an error if the method is not GET, HEAD, or POST.
func WithMethod(method string) VendorOption {
	return func(cfg *vendorConfig) error {
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodPost:
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET, HEAD, or POST")
		}
	}
}
