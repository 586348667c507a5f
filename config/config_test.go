package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
)

func TestParse_ValidConfig(t *testing.T) {
	yaml := `
name: Ryzen 5 5600X
interval: 60m
min_jitter: 1m
max_jitter: 2m
mismatch_policy: reject
status_addr: ":9100"
rate_limit: 0.5
burst: 2

vendors:
  - name: Alternate
    url: https://www.alternate.de/product/1685588
    timeout: 15s
    headers:
      Accept-Language: de-DE
    detector: selector:.available_stock
  - name: NBB
    url: https://www.notebooksbilliger.de/amd+ryzen+5+5600x+cpu
    method: GET
    detector: "contains:sofort ab Lager"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Name != "Ryzen 5 5600X" {
		t.Errorf("Name = %q, want %q", cfg.Name, "Ryzen 5 5600X")
	}
	if cfg.Interval.Duration() != 60*time.Minute {
		t.Errorf("Interval = %v, want 60m", cfg.Interval.Duration())
	}
	if cfg.MinJitter.Duration() != time.Minute || cfg.MaxJitter.Duration() != 2*time.Minute {
		t.Errorf("jitter = [%v, %v], want [1m, 2m]", cfg.MinJitter.Duration(), cfg.MaxJitter.Duration())
	}
	if cfg.MismatchPolicy != "reject" {
		t.Errorf("MismatchPolicy = %q, want reject", cfg.MismatchPolicy)
	}
	if cfg.RateLimit != 0.5 || cfg.Burst != 2 {
		t.Errorf("rate limit = %v/%d, want 0.5/2", cfg.RateLimit, cfg.Burst)
	}

	if len(cfg.Vendors) != 2 {
		t.Fatalf("len(Vendors) = %d, want 2", len(cfg.Vendors))
	}
	v := cfg.Vendors[0]
	if v.Timeout.Duration() != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", v.Timeout.Duration())
	}
	if v.Headers["Accept-Language"] != "de-DE" {
		t.Errorf("Headers = %v", v.Headers)
	}
	if v.Detector.Type != "selector" || v.Detector.Selector != ".available_stock" {
		t.Errorf("Detector = %+v, want selector .available_stock", v.Detector)
	}
	if d := cfg.Vendors[1].Detector; d.Type != "contains" || d.Text != "sofort ab Lager" {
		t.Errorf("Detector = %+v, want contains 'sofort ab Lager'", d)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
presets:
  ryzen_5600x: true
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Interval.Duration() != 20*time.Minute {
		t.Errorf("Interval = %v, want 20m", cfg.Interval.Duration())
	}
	if cfg.MinJitter.Duration() != 3*time.Minute || cfg.MaxJitter.Duration() != 7*time.Minute {
		t.Errorf("jitter = [%v, %v], want [3m, 7m]", cfg.MinJitter.Duration(), cfg.MaxJitter.Duration())
	}
}

func TestParse_ZeroJitterKept(t *testing.T) {
	cfg, err := Parse([]byte(`
min_jitter: 0s
max_jitter: 0s
presets:
  ryzen_5600x: true
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.MinJitter.Duration() != 0 || cfg.MaxJitter.Duration() != 0 {
		t.Errorf("jitter = [%v, %v], want [0s, 0s]", cfg.MinJitter.Duration(), cfg.MaxJitter.Duration())
	}
}

func TestParse_StructuredDetectors(t *testing.T) {
	yaml := `
vendors:
  - name: Mindfactory
    url: https://www.mindfactory.de/product_info.php/AMD-Ryzen-5-5600X_1380726.html
    detector:
      type: price_below
      selector: .pprice
      pattern: 'nur\s€\s(?P<price>\d+)'
      max: 340
  - name: API
    url: https://api.example.com/product
    detector:
      type: json
      path: product.status
      out_of_stock: [sold_out, unavailable]
      expect:
        product.gpu: RTX 3080
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	pb := cfg.Vendors[0].Detector
	if pb.Type != "price_below" || pb.Selector != ".pprice" || pb.Max != 340 {
		t.Errorf("price_below detector = %+v", pb)
	}
	if pb.Pattern != `nur\s€\s(?P<price>\d+)` {
		t.Errorf("Pattern = %q", pb.Pattern)
	}

	js := cfg.Vendors[1].Detector
	if js.Type != "json" || js.Path != "product.status" {
		t.Errorf("json detector = %+v", js)
	}
	if len(js.OutOfStock) != 2 || js.OutOfStock[0] != "sold_out" {
		t.Errorf("OutOfStock = %v", js.OutOfStock)
	}
	if js.Expect["product.gpu"] != "RTX 3080" {
		t.Errorf("Expect = %v", js.Expect)
	}
}

func TestParse_DetectorShorthand(t *testing.T) {
	tests := []struct {
		shorthand string
		want      DetectorConfig
	}{
		{"selector:.in-stock", DetectorConfig{Type: "selector", Selector: ".in-stock"}},
		{"contains:Auf Lager", DetectorConfig{Type: "contains", Text: "Auf Lager"}},
		{"absent:Ausverkauft", DetectorConfig{Type: "absent", Text: "Ausverkauft"}},
		{"json:a.b", DetectorConfig{Type: "json", Path: "a.b"}},
		{"selector:a:hover", DetectorConfig{Type: "selector", Selector: "a:hover"}},
	}

	for _, tt := range tests {
		t.Run(tt.shorthand, func(t *testing.T) {
			var d DetectorConfig
			if err := d.parseShorthand(tt.shorthand); err != nil {
				t.Fatalf("parseShorthand() error = %v", err)
			}
			if d.Type != tt.want.Type || d.Selector != tt.want.Selector || d.Text != tt.want.Text || d.Path != tt.want.Path {
				t.Errorf("parseShorthand(%q) = %+v, want %+v", tt.shorthand, d, tt.want)
			}
		})
	}
}

func TestParse_Grid(t *testing.T) {
	yaml := `
grids:
  - name: NVIDIA
    url_template: "https://api.example.com/search?gpu={{.gpu}}&locale={{.locale}}"
    dimensions:
      gpu: [RTX 3080, RTX 3070]
      locale: [de-de]
    detector: json:product.prdStatus
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Grids) != 1 {
		t.Fatalf("len(Grids) = %d, want 1", len(cfg.Grids))
	}
	if got := cfg.Grids[0].Dimensions["gpu"]; len(got) != 2 || got[0] != "RTX 3080" {
		t.Errorf("gpu dimension = %v", got)
	}
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("SHOP_HOST", "shop.example.com")
	t.Setenv("SHOP_TOKEN", "secret")
	t.Setenv("TG_TOKEN", "123:abc")

	yaml := `
vendors:
  - name: Shop
    url: https://${SHOP_HOST}/item
    headers:
      Authorization: Bearer ${SHOP_TOKEN}
    detector: selector:.stock
notify:
  telegram:
    token: ${TG_TOKEN}
    chat_id: ${TG_CHAT:-4711}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Vendors[0].URL != "https://shop.example.com/item" {
		t.Errorf("URL = %q", cfg.Vendors[0].URL)
	}
	if cfg.Vendors[0].Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization = %q", cfg.Vendors[0].Headers["Authorization"])
	}
	if cfg.Notify.Telegram.Token != "123:abc" || cfg.Notify.Telegram.ChatID != "4711" {
		t.Errorf("Telegram = %+v", cfg.Notify.Telegram)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
vendors:
  - name: Shop
    url: https://${TINYBOTS_SURELY_UNSET_HOST}/item
    detector: selector:.stock
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for unset variable")
	}
	if !strings.Contains(err.Error(), "TINYBOTS_SURELY_UNSET_HOST") {
		t.Errorf("error %q does not name the variable", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "nothing to watch",
			yaml:    `name: empty`,
			wantErr: "at least one vendor, grid or preset",
		},
		{
			name:    "interval too short",
			yaml:    "interval: 500ms\npresets: {ryzen_5600x: true}",
			wantErr: "interval: must be at least 1s",
		},
		{
			name:    "jitter reversed",
			yaml:    "min_jitter: 5m\nmax_jitter: 1m\npresets: {ryzen_5600x: true}",
			wantErr: "exceeds max_jitter",
		},
		{
			name:    "bad mismatch policy",
			yaml:    "mismatch_policy: maybe\npresets: {ryzen_5600x: true}",
			wantErr: "mismatch policy must be accept or reject",
		},
		{
			name:    "bad message template",
			yaml:    "message: '{{.Label'\npresets: {ryzen_5600x: true}",
			wantErr: "message: invalid template",
		},
		{
			name: "missing name",
			yaml: `
vendors:
  - url: https://example.com
    detector: selector:.x`,
			wantErr: "vendors[0]: name is required",
		},
		{
			name: "missing url",
			yaml: `
vendors:
  - name: Shop
    detector: selector:.x`,
			wantErr: "vendors[0] (Shop): url is required",
		},
		{
			name: "bad scheme",
			yaml: `
vendors:
  - name: Shop
    url: ftp://example.com
    detector: selector:.x`,
			wantErr: "url scheme must be http or https",
		},
		{
			name: "duplicate name",
			yaml: `
vendors:
  - name: Shop
    url: https://a.example.com
    detector: selector:.x
  - name: Shop
    url: https://b.example.com
    detector: selector:.x`,
			wantErr: `name "Shop" already used by vendors[0] (Shop)`,
		},
		{
			name: "missing detector",
			yaml: `
vendors:
  - name: Shop
    url: https://example.com`,
			wantErr: "detector is required",
		},
		{
			name: "unknown shorthand",
			yaml: `
vendors:
  - name: Shop
    url: https://example.com
    detector: regex:foo`,
			wantErr: `unknown detector type "regex"`,
		},
		{
			name: "price pattern without group",
			yaml: `
vendors:
  - name: Shop
    url: https://example.com
    detector:
      type: price_below
      selector: .price
      pattern: '\d+'
      max: 100`,
			wantErr: "(?P<price>...) group",
		},
		{
			name: "expect on selector",
			yaml: `
vendors:
  - name: Shop
    url: https://example.com
    detector:
      type: selector
      selector: .x
      expect: {a: b}`,
			wantErr: "expect is only supported by json detectors",
		},
		{
			name: "bad method",
			yaml: `
vendors:
  - name: Shop
    url: https://example.com
    method: DELETE
    detector: selector:.x`,
			wantErr: "method must be GET, HEAD, or POST",
		},
		{
			name: "short timeout",
			yaml: `
vendors:
  - name: Shop
    url: https://example.com
    timeout: 100ms
    detector: selector:.x`,
			wantErr: "timeout must be at least 1s",
		},
		{
			name: "grid without dimensions",
			yaml: `
grids:
  - name: G
    url_template: https://example.com/{{.x}}
    detector: selector:.x`,
			wantErr: "grids[0] (G): at least one dimension is required",
		},
		{
			name: "grid duplicate value",
			yaml: `
grids:
  - name: G
    url_template: https://example.com/{{.x}}
    dimensions:
      x: [a, a]
    detector: selector:.x`,
			wantErr: `dimension "x" has duplicate value "a"`,
		},
		{
			name:    "nvidia without cards",
			yaml:    "presets:\n  nvidia:\n    locale: de-de",
			wantErr: "presets.nvidia: at least one card is required",
		},
		{
			name:    "partial telegram",
			yaml:    "presets: {ryzen_5600x: true}\nnotify:\n  telegram:\n    token: abc",
			wantErr: "telegram: either specify all of its settings or none; missing chat_id",
		},
		{
			name: "partial email",
			yaml: `
presets: {ryzen_5600x: true}
notify:
  email:
    from: bot@example.com
    server: smtp.example.com`,
			wantErr: "missing to, username, password",
		},
		{
			name: "bad email tls",
			yaml: `
presets: {ryzen_5600x: true}
notify:
  email:
    from: bot@example.com
    to: [me@example.com]
    server: smtp.example.com
    username: bot
    password: pw
    tls: ssl3`,
			wantErr: `unknown tls mode "ssl3"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_ConfigErrorType(t *testing.T) {
	_, err := Parse([]byte("presets: {ryzen_5600x: true}\nnotify:\n  telegram:\n    chat_id: '1'"))

	var cfgErr *tinybots.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error %v is not a *ConfigError", err)
	}
	if cfgErr.Section != "telegram" || len(cfgErr.Missing) != 1 || cfgErr.Missing[0] != "token" {
		t.Errorf("ConfigError = %+v", cfgErr)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	tests := []string{
		"vendors: [",
		"interval: soon\npresets: {ryzen_5600x: true}",
		"vendors:\n  - name: x\n    url: https://e.com\n    detector: [1, 2]",
	}
	for _, y := range tests {
		if _, err := Parse([]byte(y)); err == nil {
			t.Errorf("Parse(%q) expected error", y)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tinybots.yaml")
	if err := os.WriteFile(path, []byte("presets: {ryzen_5600x: true}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Presets.Ryzen5600X {
		t.Error("Ryzen5600X preset not set")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TB_SET", "value")
	t.Setenv("TB_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${TB_SET}", "value"},
		{"a-${TB_SET}-b", "a-value-b"},
		{"${TB_EMPTY:-fallback}", ""},
		{"${TB_UNSET_FOR_TEST:-fallback}", "fallback"},
		{"${TB_UNSET_FOR_TEST:-}", ""},
	}
	for _, tt := range tests {
		got, err := expandEnvVars(tt.in)
		if err != nil {
			t.Errorf("expandEnvVars(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
