package tinybots

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Stock is the stock state a [Detector] reads from a vendor response.
type Stock string

const (
	// StockIn means the vendor lists the item as orderable.
	StockIn Stock = "in_stock"

	// StockOut means the vendor lists the item as not orderable.
	StockOut Stock = "out_of_stock"

	// StockUnknown means the response could not be interpreted, for example
	// because a bot wall was served instead of the product page. Unknown is
	// counted as a failed vendor attempt.
	StockUnknown Stock = "unknown"
)

// Detection is the result of running a [Detector] on a vendor response.
type Detection struct {
	Stock      Stock
	Mismatches []string
}

// InStock returns an in-stock detection.
func InStock(mismatches ...string) Detection {
	return Detection{Stock: StockIn, Mismatches: mismatches}
}

// OutOfStock returns an out-of-stock detection.
func OutOfStock() Detection {
	return Detection{Stock: StockOut}
}

// Unknown returns a detection for an uninterpretable response.
func Unknown() Detection {
	return Detection{Stock: StockUnknown}
}

// Detector determines stock from a vendor's HTTP response.
//
// Detector is a pure function: the same inputs always produce the same
// detection. The status code is passed for detectors that care; non-2xx
// responses are turned into failed attempts before a detector runs.
//
// # Panic Safety
//
// Detectors are called within a panic recovery boundary. A panicking
// detector marks the vendor attempt as failed with an error carrying a
// correlation ID, and the stack trace is logged.
type Detector func(body []byte, statusCode int) Detection

// SelectorDetector returns a [Detector] reporting in stock when at least one
// element matches the CSS selector.
//
// Example:
//
//	// Alternate renders .available_stock only for orderable items
//	d := tinybots.SelectorDetector(".available_stock")
func SelectorDetector(selector string) Detector {
	return func(body []byte, statusCode int) Detection {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return Unknown()
		}
		if doc.Find(selector).Length() > 0 {
			return InStock()
		}
		return OutOfStock()
	}
}

// ContainsDetector returns a [Detector] reporting in stock when the body
// contains text (case-insensitive).
func ContainsDetector(text string) Detector {
	lower := strings.ToLower(text)
	return func(body []byte, statusCode int) Detection {
		if strings.Contains(strings.ToLower(string(body)), lower) {
			return InStock()
		}
		return OutOfStock()
	}
}

// AbsentDetector returns a [Detector] reporting in stock when the body does
// not contain text (case-insensitive). Use it for shops that print a
// "sold out" banner.
func AbsentDetector(text string) Detector {
	lower := strings.ToLower(text)
	return func(body []byte, statusCode int) Detection {
		if strings.Contains(strings.ToLower(string(body)), lower) {
			return OutOfStock()
		}
		return InStock()
	}
}

// PriceBelowDetector returns a [Detector] that reads a price from the text of
// the first element matching selector and reports in stock when the price is
// strictly below max.
//
// The pattern must contain a named group "price". A missing element or a
// text that does not match the pattern reports out of stock, since shops
// drop the price block for unavailable items.
//
// Returns an error if the pattern is invalid or lacks the price group.
//
// Example:
//
//	d, err := tinybots.PriceBelowDetector(".pprice", `nur\s€\s(?P<price>\d+)`, 340)
func PriceBelowDetector(selector, pattern string, max float64) (Detector, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid price pattern: %w", err)
	}
	idx := re.SubexpIndex("price")
	if idx < 0 {
		return nil, fmt.Errorf("price pattern %q has no (?P<price>...) group", pattern)
	}

	return func(body []byte, statusCode int) Detection {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return Unknown()
		}
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return OutOfStock()
		}

		m := re.FindStringSubmatch(sel.Text())
		if m == nil {
			return OutOfStock()
		}
		price, err := parsePrice(m[idx])
		if err != nil {
			return Unknown()
		}
		if price < max {
			return InStock()
		}
		return OutOfStock()
	}, nil
}

// MustPriceBelowDetector is like [PriceBelowDetector] but panics if the
// pattern is invalid.
func MustPriceBelowDetector(selector, pattern string, max float64) Detector {
	d, err := PriceBelowDetector(selector, pattern, max)
	if err != nil {
		panic("tinybots: " + err.Error())
	}
	return d
}

// parsePrice accepts both "339.90" and "339,90".
func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

// JSONFieldDetector returns a [Detector] that reads a JSON field using dot
// notation and reports out of stock when its value is one of
// outOfStockValues (case-insensitive), in stock otherwise.
//
// A body that is not JSON or lacks the field reports unknown.
//
// Example:
//
//	// {"searchedProducts": {"featuredProduct": {"prdStatus": "out_of_stock"}}}
//	d := tinybots.JSONFieldDetector("searchedProducts.featuredProduct.prdStatus", "out_of_stock")
func JSONFieldDetector(path string, outOfStockValues ...string) Detector {
	parts := strings.Split(path, ".")
	out := make(map[string]bool, len(outOfStockValues))
	for _, v := range outOfStockValues {
		out[strings.ToLower(v)] = true
	}

	return func(body []byte, statusCode int) Detection {
		var data interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			return Unknown()
		}

		value, ok := extractJSONPath(data, parts)
		if !ok {
			return Unknown()
		}
		if out[strings.ToLower(value)] {
			return OutOfStock()
		}
		return InStock()
	}
}

// ExpectJSONField wraps d and adds a mismatch diagnostic to in-stock
// detections whose JSON field at path differs from want.
//
// The comparison is on the string form of the value, so booleans compare as
// "true" and "false". A missing field is reported as a mismatch too.
//
// Example:
//
//	d := tinybots.ExpectJSONField(base, "searchedProducts.featuredProduct.gpu", "RTX 3080")
func ExpectJSONField(d Detector, path, want string) Detector {
	parts := strings.Split(path, ".")
	field := parts[len(parts)-1]

	return func(body []byte, statusCode int) Detection {
		det := d(body, statusCode)
		if det.Stock != StockIn {
			return det
		}

		var data interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			return det
		}

		got, ok := extractJSONPath(data, parts)
		switch {
		case !ok:
			det.Mismatches = appendMismatch(det.Mismatches, fmt.Sprintf("%s is missing, want %s", field, want))
		case got != want:
			det.Mismatches = appendMismatch(det.Mismatches, fmt.Sprintf("%s is %s, want %s", field, got, want))
		}
		return det
	}
}

func appendMismatch(existing []string, m string) []string {
	return append(append([]string(nil), existing...), m)
}

// extractJSONPath walks a JSON structure using dot notation parts.
func extractJSONPath(data interface{}, parts []string) (string, bool) {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = obj[part]
		if !ok {
			return "", false
		}
	}

	switch v := current.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// FirstMatch returns a [Detector] that tries detectors in order and returns
// the first detection that is not unknown.
//
// If all detectors return unknown, FirstMatch returns unknown.
func FirstMatch(detectors ...Detector) Detector {
	return func(body []byte, statusCode int) Detection {
		for _, d := range detectors {
			det := d(body, statusCode)
			if det.Stock != StockUnknown {
				return det
			}
		}
		return Unknown()
	}
}
