package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
)

func mustParse(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestBuildVendors_Order(t *testing.T) {
	cfg := mustParse(t, `
vendors:
  - name: First
    url: https://first.example.com
    detector: selector:.x
grids:
  - name: Grid
    url_template: "https://grid.example.com/?gpu={{.gpu}}"
    dimensions:
      gpu: [RTX 3080, RTX 3070]
    detector: json:status
presets:
  nvidia:
    cards: [RTX 3090]
  ryzen_5600x: true
`)

	vendors, err := BuildVendors(cfg)
	if err != nil {
		t.Fatalf("BuildVendors() error = %v", err)
	}

	var names []string
	for _, v := range vendors {
		names = append(names, v.Name())
	}
	want := []string{
		"First",
		"Grid (RTX 3080)",
		"Grid (RTX 3070)",
		"NVIDIA (RTX 3090)",
		"Alternate",
		"Mindfactory",
		"NBB",
	}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Errorf("vendor order = %v, want %v", names, want)
	}
	if vendors[1].URL() != "https://grid.example.com/?gpu=RTX+3080" {
		t.Errorf("grid URL = %q", vendors[1].URL())
	}
}

func TestBuildVendors_RequestSettings(t *testing.T) {
	cfg := mustParse(t, `
vendors:
  - name: Shop
    url: https://shop.example.com
    method: HEAD
    timeout: 30s
    headers:
      X-B: "2"
      X-A: "1"
    detector: selector:.x
`)

	vendors, err := BuildVendors(cfg)
	if err != nil {
		t.Fatalf("BuildVendors() error = %v", err)
	}
	v := vendors[0]
	if v.Method() != "HEAD" {
		t.Errorf("Method = %q, want HEAD", v.Method())
	}
	if v.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", v.Timeout())
	}
	if v.Headers()["X-A"] != "1" || v.Headers()["X-B"] != "2" {
		t.Errorf("Headers = %v", v.Headers())
	}
}

func TestBuildDetector(t *testing.T) {
	tests := []struct {
		name string
		dc   DetectorConfig
		body string
		want tinybots.Stock
	}{
		{"selector hit", DetectorConfig{Type: "selector", Selector: ".ok"}, `<p class="ok">x</p>`, tinybots.StockIn},
		{"selector miss", DetectorConfig{Type: "selector", Selector: ".ok"}, `<p>x</p>`, tinybots.StockOut},
		{"contains", DetectorConfig{Type: "contains", Text: "Auf Lager"}, "Auf Lager", tinybots.StockIn},
		{"absent", DetectorConfig{Type: "absent", Text: "Ausverkauft"}, "Ausverkauft", tinybots.StockOut},
		{"json default", DetectorConfig{Type: "json", Path: "s"}, `{"s":"out_of_stock"}`, tinybots.StockOut},
		{"json custom", DetectorConfig{Type: "json", Path: "s", OutOfStock: []string{"gone"}}, `{"s":"out_of_stock"}`, tinybots.StockIn},
		{"price below", DetectorConfig{Type: "price_below", Selector: ".p", Pattern: `(?P<price>\d+)`, Max: 340}, `<span class="p">329</span>`, tinybots.StockIn},
		{"price above", DetectorConfig{Type: "price_below", Selector: ".p", Pattern: `(?P<price>\d+)`, Max: 340}, `<span class="p">399</span>`, tinybots.StockOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := buildDetector(tt.dc)
			if err != nil {
				t.Fatalf("buildDetector() error = %v", err)
			}
			if got := d([]byte(tt.body), 200).Stock; got != tt.want {
				t.Errorf("Stock = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := buildDetector(DetectorConfig{Type: "magic"}); err == nil {
		t.Error("buildDetector() expected error for unknown type")
	}
}

func TestBuildDetector_Expect(t *testing.T) {
	d, err := buildDetector(DetectorConfig{
		Type:   "json",
		Path:   "status",
		Expect: map[string]string{"gpu": "RTX 3080", "fe": "true"},
	})
	if err != nil {
		t.Fatalf("buildDetector() error = %v", err)
	}

	det := d([]byte(`{"status":"buy_now","gpu":"RTX 3070","fe":false}`), 200)
	if det.Stock != tinybots.StockIn {
		t.Fatalf("Stock = %v, want in stock", det.Stock)
	}
	if len(det.Mismatches) != 2 {
		t.Fatalf("Mismatches = %v, want 2", det.Mismatches)
	}
	if !strings.Contains(det.Mismatches[0], "fe") || !strings.Contains(det.Mismatches[1], "gpu") {
		t.Errorf("Mismatches = %v, want sorted by path", det.Mismatches)
	}
}

func TestBuildNotifier(t *testing.T) {
	none := mustParse(t, "presets: {ryzen_5600x: true}")
	n, err := BuildNotifier(none)
	if err != nil {
		t.Fatalf("BuildNotifier() error = %v", err)
	}
	if n != nil {
		t.Errorf("BuildNotifier() = %v, want nil without channels", n)
	}

	both := mustParse(t, `
presets: {ryzen_5600x: true}
notify:
  email:
    from: bot@example.com
    to: [me@example.com]
    server: smtp.example.com
    username: bot
    password: pw
    tls: starttls
    port: 587
  telegram:
    token: "123:abc"
    chat_id: "42"
`)
	n, err = BuildNotifier(both)
	if err != nil {
		t.Fatalf("BuildNotifier() error = %v", err)
	}
	if n == nil {
		t.Fatal("BuildNotifier() = nil, want combined notifier")
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := mustParse(t, `
name: Card
interval: 1s
min_jitter: 0s
max_jitter: 0s
mismatch_policy: reject
message: "{{.Label}} has it"
vendors:
  - name: Shop
    url: https://shop.example.com
    detector: selector:.x
`)

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	src := tinybots.SourceFunc(func(context.Context) tinybots.CheckResult { return tinybots.Unavailable() })
	w, err := tinybots.New(src, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if w.Interval() != time.Second {
		t.Errorf("Interval = %v, want 1s", w.Interval())
	}
	if min, max := w.Jitter(); min != 0 || max != 0 {
		t.Errorf("Jitter = [%v, %v], want zero", min, max)
	}
}

func TestBuild_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/b" {
			_, _ = w.Write([]byte(`<div class="in-stock">Auf Lager</div>`))
			return
		}
		_, _ = w.Write([]byte(`<div>Ausverkauft</div>`))
	}))
	defer srv.Close()

	t.Setenv("SHOP", srv.URL)
	cfg := mustParse(t, `
vendors:
  - name: A
    url: ${SHOP}/a
    detector: selector:.in-stock
  - name: B
    url: ${SHOP}/b
    detector: selector:.in-stock
rate_limit: 100
`)

	vendors, err := BuildVendors(cfg)
	if err != nil {
		t.Fatalf("BuildVendors() error = %v", err)
	}
	src, err := tinybots.NewHTTPSource(vendors, BuildSourceOptions(cfg)...)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	defer src.Close()

	r := src.Check(context.Background())
	if !r.IsAvailable() || r.Label != "B" {
		t.Errorf("Check() = %+v, want available at B", r)
	}
}
