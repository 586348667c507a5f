package tinybots

import (
	"errors"
	"net/url"
	"time"
)

const defaultVendorTimeout = 10 * time.Second

// Vendor is one upstream shop or API checked for stock.
//
// Vendor is immutable after creation via [NewVendor]. All fields are private
// with getter methods that return copies of mutable data (maps), so a vendor
// cannot be modified after construction.
//
// Vendors are configured using the functional options pattern with
// [VendorOption] functions such as [WithDetector], [WithHeaders],
// [WithTimeout] and [WithMethod].
type Vendor struct {
	name     string
	url      string
	headers  map[string]string
	timeout  time.Duration
	detector Detector
	method   string
}

// Name returns the vendor's display name. It becomes the label of an
// available [CheckResult].
func (v Vendor) Name() string {
	return v.name
}

// URL returns the product page or API URL queried for this vendor.
func (v Vendor) URL() string {
	return v.url
}

// Headers returns a copy of the vendor's custom HTTP headers.
// Returns nil if no custom headers are set.
func (v Vendor) Headers() map[string]string {
	return copyMap(v.headers)
}

// Timeout returns the vendor's HTTP request timeout.
// Defaults to 10 seconds if not explicitly set via [WithTimeout].
func (v Vendor) Timeout() time.Duration {
	return v.timeout
}

// Detector returns the vendor's [Detector].
func (v Vendor) Detector() Detector {
	return v.detector
}

// Method returns the HTTP method. Empty means GET.
func (v Vendor) Method() string {
	return v.method
}

// NewVendor creates a [Vendor] with the given name, URL, and options.
//
// The rawURL parameter must be a valid URL with a scheme (http:// or https://).
// A detector must be set with [WithDetector].
//
// Returns an error if the name is empty, the URL is invalid, or no detector
// is configured.
//
// Example:
//
//	v, err := tinybots.NewVendor("Alternate", "https://www.alternate.de/...",
//	    tinybots.WithDetector(tinybots.SelectorDetector(".available_stock")),
//	    tinybots.WithTimeout(15 * time.Second),
//	)
func NewVendor(name, rawURL string, opts ...VendorOption) (Vendor, error) {
	if name == "" {
		return Vendor{}, errors.New("vendor name cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Vendor{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme == "" {
		return Vendor{}, errors.New("URL must have a scheme (http:// or https://)")
	}

	cfg := &vendorConfig{
		headers: make(map[string]string),
		timeout: defaultVendorTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Vendor{}, err
		}
	}

	if cfg.detector == nil {
		return Vendor{}, errors.New("vendor " + name + ": detector is required")
	}

	return Vendor{
		name:     name,
		url:      rawURL,
		headers:  cfg.headers,
		timeout:  cfg.timeout,
		detector: cfg.detector,
		method:   cfg.method,
	}, nil
}

// MustVendor is like [NewVendor] but panics on error. Use it for vendor
// definitions built from constants.
func MustVendor(name, rawURL string, opts ...VendorOption) Vendor {
	v, err := NewVendor(name, rawURL, opts...)
	if err != nil {
		panic("tinybots: " + err.Error())
	}
	return v
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
