package tinybots

import (
	"strings"
	"testing"
)

const alternatePage = `<html><body>
<div class="product">
  <span class="available_stock">Auf Lager</span>
</div>
</body></html>`

const mindfactoryPage = `<html><body>
<div class="pprice">nur € 329,-</div>
</body></html>`

func TestSelectorDetector(t *testing.T) {
	d := SelectorDetector(".available_stock")

	tests := []struct {
		name string
		body string
		want Stock
	}{
		{"present", alternatePage, StockIn},
		{"absent", `<html><body><div class="sold-out"></div></body></html>`, StockOut},
		{"empty body", ``, StockOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d([]byte(tt.body), 200).Stock; got != tt.want {
				t.Errorf("SelectorDetector() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainsAndAbsentDetector(t *testing.T) {
	tests := []struct {
		name     string
		detector Detector
		body     string
		want     Stock
	}{
		{"contains match", ContainsDetector("sofort ab Lager"), "Artikel ist SOFORT AB LAGER lieferbar", StockIn},
		{"contains miss", ContainsDetector("sofort ab Lager"), "Liefertermin unbekannt", StockOut},
		{"absent match", AbsentDetector("Ausverkauft"), "ausverkauft", StockOut},
		{"absent miss", AbsentDetector("Ausverkauft"), "In den Warenkorb", StockIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.detector([]byte(tt.body), 200).Stock; got != tt.want {
				t.Errorf("detector() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriceBelowDetector(t *testing.T) {
	const pattern = `nur\s€\s(?P<price>\d+)`

	tests := []struct {
		name string
		body string
		max  float64
		want Stock
	}{
		{"below max", mindfactoryPage, 340, StockIn},
		{"equal to max", mindfactoryPage, 329, StockOut},
		{"above max", mindfactoryPage, 300, StockOut},
		{"no price element", `<html><body></body></html>`, 340, StockOut},
		{"pattern mismatch", `<div class="pprice">ab 299 EUR</div>`, 340, StockOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := PriceBelowDetector(".pprice", pattern, tt.max)
			if err != nil {
				t.Fatalf("PriceBelowDetector() error = %v", err)
			}
			if got := d([]byte(tt.body), 200).Stock; got != tt.want {
				t.Errorf("PriceBelowDetector() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriceBelowDetector_DecimalComma(t *testing.T) {
	d := MustPriceBelowDetector(".price", `(?P<price>\d+,\d+)\s€`, 300)
	if got := d([]byte(`<span class="price">299,90 €</span>`), 200).Stock; got != StockIn {
		t.Errorf("PriceBelowDetector() = %v, want in stock", got)
	}
}

func TestPriceBelowDetector_InvalidPattern(t *testing.T) {
	if _, err := PriceBelowDetector(".p", `(?P<price>\d+`, 1); err == nil {
		t.Error("PriceBelowDetector() expected error for invalid regex, got nil")
	}
	if _, err := PriceBelowDetector(".p", `(\d+)`, 1); err == nil {
		t.Error("PriceBelowDetector() expected error for missing price group, got nil")
	}
}

func TestMustPriceBelowDetector_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustPriceBelowDetector() should panic on invalid pattern")
		}
	}()
	MustPriceBelowDetector(".p", `[`, 1)
}

func TestJSONFieldDetector(t *testing.T) {
	d := JSONFieldDetector("searchedProducts.featuredProduct.prdStatus", "out_of_stock")

	tests := []struct {
		name string
		body string
		want Stock
	}{
		{"out of stock", `{"searchedProducts":{"featuredProduct":{"prdStatus":"out_of_stock"}}}`, StockOut},
		{"out of stock uppercase", `{"searchedProducts":{"featuredProduct":{"prdStatus":"OUT_OF_STOCK"}}}`, StockOut},
		{"purchasable", `{"searchedProducts":{"featuredProduct":{"prdStatus":"purchase_now"}}}`, StockIn},
		{"missing field", `{"searchedProducts":{}}`, StockUnknown},
		{"not json", `<html>Access denied</html>`, StockUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d([]byte(tt.body), 200).Stock; got != tt.want {
				t.Errorf("JSONFieldDetector() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpectJSONField(t *testing.T) {
	base := JSONFieldDetector("p.prdStatus", "out_of_stock")
	d := ExpectJSONField(ExpectJSONField(base, "p.gpu", "RTX 3080"), "p.isFounderEdition", "true")

	tests := []struct {
		name       string
		body       string
		stock      Stock
		mismatches []string
	}{
		{
			"exact match",
			`{"p":{"prdStatus":"buy","gpu":"RTX 3080","isFounderEdition":true}}`,
			StockIn, nil,
		},
		{
			"wrong model",
			`{"p":{"prdStatus":"buy","gpu":"RTX 3070","isFounderEdition":true}}`,
			StockIn, []string{"gpu is RTX 3070, want RTX 3080"},
		},
		{
			"partner card of wrong model",
			`{"p":{"prdStatus":"buy","gpu":"RTX 3070","isFounderEdition":false}}`,
			StockIn, []string{"gpu is RTX 3070, want RTX 3080", "isFounderEdition is false, want true"},
		},
		{
			"missing field",
			`{"p":{"prdStatus":"buy","gpu":"RTX 3080"}}`,
			StockIn, []string{"isFounderEdition is missing, want true"},
		},
		{
			"out of stock skips expectations",
			`{"p":{"prdStatus":"out_of_stock","gpu":"RTX 3070"}}`,
			StockOut, nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d([]byte(tt.body), 200)
			if got.Stock != tt.stock {
				t.Errorf("Stock = %v, want %v", got.Stock, tt.stock)
			}
			if strings.Join(got.Mismatches, "|") != strings.Join(tt.mismatches, "|") {
				t.Errorf("Mismatches = %v, want %v", got.Mismatches, tt.mismatches)
			}
		})
	}
}

func TestFirstMatch(t *testing.T) {
	unknown := func([]byte, int) Detection { return Unknown() }
	in := func([]byte, int) Detection { return InStock() }
	out := func([]byte, int) Detection { return OutOfStock() }

	tests := []struct {
		name      string
		detectors []Detector
		want      Stock
	}{
		{"first definitive wins", []Detector{unknown, out, in}, StockOut},
		{"all unknown", []Detector{unknown, unknown}, StockUnknown},
		{"empty", nil, StockUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstMatch(tt.detectors...)(nil, 200).Stock; got != tt.want {
				t.Errorf("FirstMatch() = %v, want %v", got, tt.want)
			}
		})
	}
}
