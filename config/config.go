// Package config provides YAML configuration parsing for tinybots.
//
// This package lets the tinybots binary run a watch from a configuration
// file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	name: Ryzen 5 5600X
//	interval: 60m
//	min_jitter: 3m
//	max_jitter: 7m
//
//	vendors:
//	  - name: Alternate
//	    url: https://www.alternate.de/AMD/Ryzen-5-5600X-Prozessor/html/product/1685588
//	    detector: selector:.available_stock
//	  - name: NBB
//	    url: https://www.notebooksbilliger.de/amd+ryzen+5+5600x+cpu
//	    detector: "contains:sofort ab Lager"
//
//	notify:
//	  telegram:
//	    token: ${TELEGRAM_TOKEN}
//	    chat_id: ${TELEGRAM_CHAT_ID}
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
	"gopkg.in/yaml.v3"
)

// minInterval is the minimum allowed base interval. Shops block clients
// that poll aggressively.
const minInterval = 1 * time.Second

const (
	defaultInterval  = 20 * time.Minute
	defaultMinJitter = 3 * time.Minute
	defaultMaxJitter = 7 * time.Minute
)

// Config is the root configuration structure for tinybots.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Name is the watch's display name. Defaults to "tinybots".
	Name string `yaml:"name"`

	// Interval is the fixed part of the delay between checks.
	// Accepts duration strings like "20m" or "1h". Defaults to 20m.
	Interval Duration `yaml:"interval"`

	// MinJitter and MaxJitter bound the random delay added to Interval.
	// Default to 3m and 7m. An explicit 0s is kept.
	MinJitter *Duration `yaml:"min_jitter"`
	MaxJitter *Duration `yaml:"max_jitter"`

	// MismatchPolicy is "accept" (default) or "reject".
	MismatchPolicy string `yaml:"mismatch_policy"`

	// Message and Subject are notification text templates.
	Message string `yaml:"message"`
	Subject string `yaml:"subject"`

	// StatusAddr serves the status page and metrics, e.g. ":9100".
	StatusAddr string `yaml:"status_addr"`

	// UserAgent overrides the browser user agent sent to vendors.
	UserAgent string `yaml:"user_agent"`

	// RateLimit caps vendor requests per second. Zero disables the limit.
	RateLimit float64 `yaml:"rate_limit"`

	// Burst is the rate limiter burst. Defaults to 1 when RateLimit is set.
	Burst int `yaml:"burst"`

	// LEDs enables Orange Pi 3 LED feedback while checking.
	LEDs bool `yaml:"leds"`

	// Vendors are checked in order; the first in stock wins.
	Vendors []VendorConfig `yaml:"vendors"`

	// Grids expand into vendors via cartesian product, after Vendors.
	Grids []GridConfig `yaml:"grids"`

	// Presets add built-in vendor lists, after Grids.
	Presets PresetsConfig `yaml:"presets"`

	// Notify configures the notification channels.
	Notify NotifyConfig `yaml:"notify"`
}

// VendorConfig defines a single vendor.
type VendorConfig struct {
	// Name is the label reported when this vendor is in stock.
	Name string `yaml:"name"`

	// URL is the product page or API URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method (GET, HEAD, POST). Defaults to GET.
	Method string `yaml:"method"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Detector determines stock from the response.
	// Can be shorthand ("selector:.in-stock", "contains:Auf Lager") or structured.
	Detector DetectorConfig `yaml:"detector"`
}

// GridConfig defines a vendor grid that expands via cartesian product.
//
// For example, with dimensions {gpu: [RTX 3080, RTX 3070]} the grid expands
// to two vendors, checked in that order.
type GridConfig struct {
	// Name is the base name for generated vendors.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating vendor URLs.
	// Dimension keys are available as template variables: {{.gpu}}
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their values in priority order.
	Dimensions map[string][]string `yaml:"dimensions"`

	Method   string            `yaml:"method"`
	Timeout  Duration          `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	Detector DetectorConfig    `yaml:"detector"`
}

// PresetsConfig selects built-in vendor lists.
type PresetsConfig struct {
	// Nvidia adds NVIDIA partner API vendors for the given cards.
	Nvidia *NvidiaPresetConfig `yaml:"nvidia"`

	// Ryzen5600X adds Alternate, Mindfactory and NBB for the Ryzen 5 5600X.
	Ryzen5600X bool `yaml:"ryzen_5600x"`
}

// NvidiaPresetConfig configures the NVIDIA preset.
type NvidiaPresetConfig struct {
	Cards    []string `yaml:"cards"`
	Locale   string   `yaml:"locale"`
	Founders bool     `yaml:"founders"`
}

// NotifyConfig holds the notification channels. A channel is enabled only
// when all of its credential fields are set.
type NotifyConfig struct {
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// EmailConfig holds SMTP settings. Values support environment variable
// substitution.
type EmailConfig struct {
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	TLS      string   `yaml:"tls"`
}

// TelegramConfig holds bot settings. Values support environment variable
// substitution.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// DetectorConfig specifies how to read stock from a response.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	detector: selector:.available_stock
//	detector: contains:sofort ab Lager
//	detector: absent:Ausverkauft
//	detector: json:product.status
//
// Structured object:
//
//	detector:
//	  type: price_below
//	  selector: .pprice
//	  pattern: 'nur\s€\s(?P<price>\d+)'
//	  max: 340
type DetectorConfig struct {
	// Type is "selector", "contains", "absent", "json" or "price_below".
	Type string

	// Selector is the CSS selector (selector, price_below).
	Selector string

	// Text is the substring (contains, absent).
	Text string

	// Path is the JSON field path (json).
	Path string

	// OutOfStock lists JSON values meaning out of stock (json).
	// Defaults to ["out_of_stock"].
	OutOfStock []string

	// Expect maps JSON paths to wanted values; differences are mismatches.
	Expect map[string]string

	// Pattern is the price regex with a "price" group (price_below).
	Pattern string

	// Max is the exclusive price cap (price_below).
	Max float64
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for DetectorConfig.
func (e *DetectorConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return e.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type       string            `yaml:"type"`
			Selector   string            `yaml:"selector"`
			Text       string            `yaml:"text"`
			Path       string            `yaml:"path"`
			OutOfStock []string          `yaml:"out_of_stock"`
			Expect     map[string]string `yaml:"expect"`
			Pattern    string            `yaml:"pattern"`
			Max        float64           `yaml:"max"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*e = DetectorConfig(raw)
		return nil
	}

	return fmt.Errorf("detector must be a string or object, got %v", node.Kind)
}

// parseShorthand parses detector shorthand syntax.
//
// Supported formats:
//   - "selector:css" → in stock when the selector matches
//   - "contains:text" → in stock when the body contains text
//   - "absent:text" → in stock when the body lacks text
//   - "json:path" → in stock unless the field is "out_of_stock"
func (e *DetectorConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	idx := strings.Index(s, ":")
	if idx == -1 {
		return fmt.Errorf("unknown detector %q (expected 'selector:css', 'contains:text', 'absent:text', or 'json:path')", s)
	}

	e.Type = s[:idx]
	value := s[idx+1:]

	switch e.Type {
	case "selector":
		e.Selector = value
	case "contains", "absent":
		e.Text = value
	case "json":
		e.Path = value
	default:
		return fmt.Errorf("unknown detector type %q", e.Type)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// expandAll expands every string pointer in place, stopping at the first error.
func expandAll(section string, fields map[string]*string) error {
	for name, p := range fields {
		expanded, err := expandEnvVars(*p)
		if err != nil {
			return invalid(section, "%s: %v", name, err)
		}
		*p = expanded
	}
	return nil
}

// invalid builds a [tinybots.ConfigError] for section.
func invalid(section, format string, args ...any) error {
	return &tinybots.ConfigError{Section: section, Reason: fmt.Sprintf(format, args...)}
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, URL templates, header values
// and notification credentials. Defaults are applied for the interval and
// jitter. Validation errors are [*tinybots.ConfigError] values.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Interval == 0 {
		cfg.Interval = Duration(defaultInterval)
	}
	if cfg.MinJitter == nil {
		d := Duration(defaultMinJitter)
		cfg.MinJitter = &d
	}
	if cfg.MaxJitter == nil {
		d := Duration(defaultMaxJitter)
		cfg.MaxJitter = &d
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateTiming checks the interval and jitter bounds. Load runs it; callers
// that override those fields after loading must run it again.
func (c *Config) ValidateTiming() error {
	if c.Interval.Duration() < minInterval {
		return invalid("interval", "must be at least %s, got %s", minInterval, c.Interval.Duration())
	}
	if c.MinJitter.Duration() < 0 {
		return invalid("min_jitter", "cannot be negative, got %s", c.MinJitter.Duration())
	}
	if c.MinJitter.Duration() > c.MaxJitter.Duration() {
		return invalid("min_jitter", "%s exceeds max_jitter %s", c.MinJitter.Duration(), c.MaxJitter.Duration())
	}
	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if err := c.ValidateTiming(); err != nil {
		return err
	}
	if _, err := tinybots.ParseMismatchPolicy(c.MismatchPolicy); err != nil {
		return invalid("mismatch_policy", "%v", err)
	}
	if c.RateLimit < 0 {
		return invalid("rate_limit", "cannot be negative, got %v", c.RateLimit)
	}
	if c.Burst < 0 {
		return invalid("burst", "cannot be negative, got %d", c.Burst)
	}
	for name, tmpl := range map[string]string{"message": c.Message, "subject": c.Subject} {
		if tmpl == "" {
			continue
		}
		if _, err := template.New(name).Parse(tmpl); err != nil {
			return invalid(name, "invalid template: %v", err)
		}
	}

	names := make(map[string]string)
	checkName := func(section, name string) error {
		if prev, dup := names[name]; dup {
			return invalid(section, "name %q already used by %s", name, prev)
		}
		names[name] = section
		return nil
	}

	for i := range c.Vendors {
		v := &c.Vendors[i]
		section := fmt.Sprintf("vendors[%d]", i)

		if v.Name == "" {
			return invalid(section, "name is required")
		}
		section = fmt.Sprintf("vendors[%d] (%s)", i, v.Name)
		if err := checkName(section, v.Name); err != nil {
			return err
		}

		if v.URL == "" {
			return invalid(section, "url is required")
		}
		expanded, err := expandEnvVars(v.URL)
		if err != nil {
			return invalid(section, "url: %v", err)
		}
		v.URL = expanded

		if err := validateURL(section, v.URL); err != nil {
			return err
		}
		if err := validateRequest(section, v.Method, v.Timeout, v.Headers); err != nil {
			return err
		}
		if err := validateDetector(section, &v.Detector); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]
		section := fmt.Sprintf("grids[%d]", i)

		if g.Name == "" {
			return invalid(section, "name is required")
		}
		section = fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.URLTemplate == "" {
			return invalid(section, "url_template is required")
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return invalid(section, "url_template: %v", err)
		}
		g.URLTemplate = expanded

		// fail fast before the SDK tries to use an invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return invalid(section, "invalid url_template: %v", err)
		}

		if len(g.Dimensions) == 0 {
			return invalid(section, "at least one dimension is required")
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return invalid(section, "dimension %q has no values", dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return invalid(section, "dimension %q has duplicate value %q", dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := validateRequest(section, g.Method, g.Timeout, g.Headers); err != nil {
			return err
		}
		if err := validateDetector(section, &g.Detector); err != nil {
			return err
		}
	}

	if n := c.Presets.Nvidia; n != nil && len(n.Cards) == 0 {
		return invalid("presets.nvidia", "at least one card is required")
	}

	if len(c.Vendors) == 0 && len(c.Grids) == 0 && c.Presets.Nvidia == nil && !c.Presets.Ryzen5600X {
		return invalid("vendors", "at least one vendor, grid or preset must be defined")
	}

	return c.Notify.expandAndValidate()
}

func (n *NotifyConfig) expandAndValidate() error {
	e := &n.Email
	if err := expandAll("notify.email", map[string]*string{
		"from": &e.From, "server": &e.Server, "username": &e.Username, "password": &e.Password,
	}); err != nil {
		return err
	}
	for i := range e.To {
		expanded, err := expandEnvVars(e.To[i])
		if err != nil {
			return invalid("notify.email", "to[%d]: %v", i, err)
		}
		e.To[i] = expanded
	}
	if _, err := e.notifier().Validate(); err != nil {
		return err
	}

	tg := &n.Telegram
	if err := expandAll("notify.telegram", map[string]*string{
		"token": &tg.Token, "chat_id": &tg.ChatID,
	}); err != nil {
		return err
	}
	_, err := tg.notifier().Validate()
	return err
}

func validateURL(section, raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return invalid(section, "invalid url: %v", err)
	}
	if parsedURL.Scheme == "" {
		return invalid(section, "url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return invalid(section, "url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	return nil
}

// validateRequest checks the shared request settings and expands header values.
func validateRequest(section, method string, timeout Duration, headers map[string]string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return invalid(section, "headers[%s]: %v", k, err)
		}
		headers[k] = expanded
	}

	if method != "" && method != "GET" && method != "HEAD" && method != "POST" {
		return invalid(section, "method must be GET, HEAD, or POST")
	}

	if timeout != 0 {
		if timeout.Duration() < 0 {
			return invalid(section, "timeout cannot be negative, got %s", timeout.Duration())
		}
		if timeout.Duration() < time.Second {
			return invalid(section, "timeout must be at least 1s if specified, got %s", timeout.Duration())
		}
	}
	return nil
}

// validateDetector validates a detector configuration.
func validateDetector(section string, d *DetectorConfig) error {
	switch d.Type {
	case "":
		return invalid(section, "detector is required")
	case "selector":
		if d.Selector == "" {
			return invalid(section, "detector type 'selector' requires a selector")
		}
	case "contains", "absent":
		if d.Text == "" {
			return invalid(section, "detector type %q requires text", d.Type)
		}
	case "json":
		if d.Path == "" {
			return invalid(section, "detector type 'json' requires a path")
		}
	case "price_below":
		if d.Selector == "" || d.Pattern == "" {
			return invalid(section, "detector type 'price_below' requires a selector and a pattern")
		}
		if d.Max <= 0 {
			return invalid(section, "detector type 'price_below' requires a positive max")
		}
		re, err := regexp.Compile(d.Pattern)
		if err != nil {
			return invalid(section, "invalid price pattern: %v", err)
		}
		if re.SubexpIndex("price") < 0 {
			return invalid(section, "price pattern needs a (?P<price>...) group")
		}
	default:
		return invalid(section, "unknown detector type %q", d.Type)
	}

	if len(d.Expect) > 0 && d.Type != "json" {
		return invalid(section, "expect is only supported by json detectors")
	}
	return nil
}
