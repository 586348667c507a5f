// Package presets holds ready-made vendor lists for the items tinybots was
// first written for: NVIDIA RTX founders edition cards and the AMD Ryzen 5
// 5600X.
package presets

import (
	"errors"
	"net/url"
	"strings"

	tinybots "github.com/ahbrosha/tiny-bots"
)

// NvidiaSearchURL is the NVIDIA partner product search API.
const NvidiaSearchURL = "https://api.nvidia.partners/edge/product/search"

// DefaultCard and DefaultLocale match the card checker's defaults.
const (
	DefaultCard   = "RTX 3080"
	DefaultLocale = "de-de"
)

const nvidiaProduct = "searchedProducts.featuredProduct."

// NvidiaOptions configures [NvidiaCards].
type NvidiaOptions struct {
	// Locale is the shop locale, e.g. "de-de". Defaults to [DefaultLocale].
	Locale string

	// RequireFounders adds a mismatch when the featured product is a
	// partner card rather than a founders edition.
	RequireFounders bool

	// BaseURL overrides [NvidiaSearchURL].
	BaseURL string
}

// NvidiaCards returns one vendor per card name, in the given priority order.
//
// Each vendor queries the partner search API and is in stock when the
// featured product's prdStatus is anything but "out_of_stock". A featured
// product of a different model, or a partner card when founders editions are
// required, is reported as a mismatch.
func NvidiaCards(opts NvidiaOptions, cards ...string) ([]tinybots.Vendor, error) {
	if len(cards) == 0 {
		return nil, errors.New("at least one card name is required")
	}
	locale := opts.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	base := opts.BaseURL
	if base == "" {
		base = NvidiaSearchURL
	}

	// the locale is fixed per preset, only the card varies
	tmpl := base + "?page=1&limit=2&locale=" + url.QueryEscape(locale) +
		"&category=GPU&gpu={{.gpu}}&manufacturer=NVIDIA"

	return tinybots.NewVendorGrid("NVIDIA",
		tinybots.WithURLTemplate(tmpl),
		tinybots.WithDimensions(map[string][]string{"gpu": cards}),
		tinybots.WithGridHeaders("Accept", "application/json"),
		tinybots.WithGridDetectorFor(func(v map[string]string) tinybots.Detector {
			return nvidiaDetector(v["gpu"], opts.RequireFounders)
		}),
	)
}

// NvidiaCard is [NvidiaCards] for a single founders edition card in the
// default locale.
func NvidiaCard(card string) ([]tinybots.Vendor, error) {
	if strings.TrimSpace(card) == "" {
		card = DefaultCard
	}
	return NvidiaCards(NvidiaOptions{RequireFounders: true}, card)
}

func nvidiaDetector(card string, requireFounders bool) tinybots.Detector {
	d := tinybots.JSONFieldDetector(nvidiaProduct+"prdStatus", "out_of_stock")
	d = tinybots.ExpectJSONField(d, nvidiaProduct+"gpu", card)
	if requireFounders {
		d = tinybots.ExpectJSONField(d, nvidiaProduct+"isFounderEdition", "true")
	}
	return d
}

// Ryzen 5 5600X product pages.
const (
	AlternateRyzen5600X   = "https://www.alternate.de/AMD/Ryzen-5-5600X-Prozessor/html/product/1685588"
	MindfactoryRyzen5600X = "https://www.mindfactory.de/product_info.php/AMD-Ryzen-5-5600X-6x-3-70GHz-So-AM4-BOX_1380726.html"
	NBBRyzen5600X         = "https://www.notebooksbilliger.de/amd+ryzen+5+5600x+cpu"
)

// MindfactoryMaxPrice is the price cap below which Mindfactory counts as in
// stock. Mindfactory keeps listing the CPU at scalper prices when sold out.
const MindfactoryMaxPrice = 340

const mindfactoryPricePattern = `nur\s€\s(?P<price>\d+)`

// Ryzen5600X returns the CPU vendors in priority order: Alternate,
// Mindfactory, then NBB.
func Ryzen5600X() []tinybots.Vendor {
	return []tinybots.Vendor{
		tinybots.MustVendor("Alternate", AlternateRyzen5600X,
			tinybots.WithDetector(tinybots.SelectorDetector(".available_stock")),
		),
		tinybots.MustVendor("Mindfactory", MindfactoryRyzen5600X,
			tinybots.WithDetector(tinybots.MustPriceBelowDetector(".pprice", mindfactoryPricePattern, MindfactoryMaxPrice)),
		),
		tinybots.MustVendor("NBB", NBBRyzen5600X,
			tinybots.WithDetector(tinybots.ContainsDetector("sofort ab Lager")),
		),
	}
}
