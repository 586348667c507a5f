package tinybots

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// NewVendorGrid creates one vendor per combination of dimension values from a
// URL template, e.g. one NVIDIA API query per card model.
//
// The URL template uses Go's text/template syntax. Dimension values are
// URL-encoded before interpolation. Missing template keys cause an error.
//
// Vendors are returned in priority order: keys are iterated alphabetically
// and each dimension's values keep the order they were given in, so the
// first value listed is checked first. Each vendor is named
// "Base Name (val1/val2)".
//
// Example:
//
//	vendors, err := tinybots.NewVendorGrid("NVIDIA",
//	    tinybots.WithURLTemplate("https://api.example.com/search?gpu={{.gpu}}"),
//	    tinybots.WithDimensions(map[string][]string{
//	        "gpu": {"RTX 3080", "RTX 3090"},
//	    }),
//	    tinybots.WithGridDetector(tinybots.ContainsDetector("in_stock")),
//	)
func NewVendorGrid(baseName string, opts ...GridOption) ([]Vendor, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}
	if cfg.detector == nil && cfg.detectorFor == nil {
		return nil, errors.New("detector required")
	}

	// missingkey=error for fail-fast behaviour
	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	combinations := cartesianProduct(cfg.dimensions)
	if len(combinations) == 0 {
		return nil, nil
	}

	vendors := make([]Vendor, 0, len(combinations))
	for _, combo := range combinations {
		urlStr, err := executeTemplate(tmpl, urlEncodeMap(combo))
		if err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}

		name := formatVendorName(baseName, combo)

		detector := cfg.detector
		if cfg.detectorFor != nil {
			detector = cfg.detectorFor(copyMap(combo))
		}

		vOpts := []VendorOption{WithDetector(detector)}
		if len(cfg.headers) > 0 {
			vOpts = append(vOpts, WithHeaders(flattenMap(cfg.headers)...))
		}
		if cfg.timeout > 0 {
			vOpts = append(vOpts, WithTimeout(cfg.timeout))
		}
		if cfg.method != "" {
			vOpts = append(vOpts, WithMethod(cfg.method))
		}

		v, err := NewVendor(name, urlStr, vOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create vendor '%s': %w", name, err)
		}
		vendors = append(vendors, v)
	}

	return vendors, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
	}

	total := 1
	for _, k := range keys {
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)

	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// increment indices (rightmost first)
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}

// urlEncodeMap returns a new map with all values URL-encoded.
func urlEncodeMap(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = url.QueryEscape(v)
	}
	return result
}

// executeTemplate renders the template with the given data.
func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatVendorName creates a name in the format "Base (v1/v2)".
// Values are ordered by sorted keys for consistent naming.
func formatVendorName(baseName string, combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}

// flattenMap converts a map to a slice of key-value pairs for variadic functions.
// Keys are sorted for deterministic output.
func flattenMap(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(m)*2)
	for _, k := range keys {
		result = append(result, k, m[k])
	}
	return result
}
