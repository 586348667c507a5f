package config

import (
	"fmt"
	"sort"

	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/ahbrosha/tiny-bots/notify"
	"github.com/ahbrosha/tiny-bots/presets"
)

// BuildVendors converts parsed configuration into SDK Vendor objects.
//
// Vendors come first, then expanded grids, then presets. The returned order
// is the priority order of the watch.
func BuildVendors(cfg *Config) ([]tinybots.Vendor, error) {
	var vendors []tinybots.Vendor

	for _, vc := range cfg.Vendors {
		v, err := buildVendor(vc)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}

	// convert grids (cartesian product expansion)
	for _, gc := range cfg.Grids {
		gridVendors, err := buildGridVendors(gc)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, gridVendors...)
	}

	if n := cfg.Presets.Nvidia; n != nil {
		nv, err := presets.NvidiaCards(presets.NvidiaOptions{
			Locale:          n.Locale,
			RequireFounders: n.Founders,
		}, n.Cards...)
		if err != nil {
			return nil, fmt.Errorf("presets.nvidia: %w", err)
		}
		vendors = append(vendors, nv...)
	}
	if cfg.Presets.Ryzen5600X {
		vendors = append(vendors, presets.Ryzen5600X()...)
	}

	return vendors, nil
}

// buildVendor converts a single VendorConfig to an SDK Vendor.
func buildVendor(vc VendorConfig) (tinybots.Vendor, error) {
	detector, err := buildDetector(vc.Detector)
	if err != nil {
		return tinybots.Vendor{}, fmt.Errorf("vendor %q: %w", vc.Name, err)
	}

	opts := []tinybots.VendorOption{tinybots.WithDetector(detector)}

	if vc.Method != "" {
		opts = append(opts, tinybots.WithMethod(vc.Method))
	}

	if vc.Timeout != 0 {
		opts = append(opts, tinybots.WithTimeout(vc.Timeout.Duration()))
	}

	if len(vc.Headers) > 0 {
		opts = append(opts, tinybots.WithHeaders(mapToKeyValuePairs(vc.Headers)...))
	}

	return tinybots.NewVendor(vc.Name, vc.URL, opts...)
}

// buildGridVendors expands a GridConfig into multiple vendors.
func buildGridVendors(gc GridConfig) ([]tinybots.Vendor, error) {
	detector, err := buildDetector(gc.Detector)
	if err != nil {
		return nil, fmt.Errorf("grid %q: %w", gc.Name, err)
	}

	opts := []tinybots.GridOption{
		tinybots.WithURLTemplate(gc.URLTemplate),
		tinybots.WithDimensions(gc.Dimensions),
		tinybots.WithGridDetector(detector),
	}

	if gc.Method != "" {
		opts = append(opts, tinybots.WithGridMethod(gc.Method))
	}

	if gc.Timeout != 0 {
		opts = append(opts, tinybots.WithGridTimeout(gc.Timeout.Duration()))
	}

	if len(gc.Headers) > 0 {
		opts = append(opts, tinybots.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}

	return tinybots.NewVendorGrid(gc.Name, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildDetector converts a DetectorConfig to an SDK Detector.
func buildDetector(dc DetectorConfig) (tinybots.Detector, error) {
	var d tinybots.Detector

	switch dc.Type {
	case "selector":
		d = tinybots.SelectorDetector(dc.Selector)
	case "contains":
		d = tinybots.ContainsDetector(dc.Text)
	case "absent":
		d = tinybots.AbsentDetector(dc.Text)
	case "json":
		outOfStock := dc.OutOfStock
		if len(outOfStock) == 0 {
			outOfStock = []string{"out_of_stock"}
		}
		d = tinybots.JSONFieldDetector(dc.Path, outOfStock...)

		// sorted so mismatch messages come out in a stable order
		paths := make([]string, 0, len(dc.Expect))
		for p := range dc.Expect {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			d = tinybots.ExpectJSONField(d, p, dc.Expect[p])
		}
	case "price_below":
		var err error
		d, err = tinybots.PriceBelowDetector(dc.Selector, dc.Pattern, dc.Max)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown detector type %q", dc.Type)
	}

	return d, nil
}

// BuildNotifier returns the configured notification channels combined with
// [notify.All], or nil when none is enabled.
func BuildNotifier(cfg *Config) (tinybots.Notifier, error) {
	var notifiers []tinybots.Notifier

	emailCfg := cfg.Notify.Email.notifier()
	enabled, err := emailCfg.Validate()
	if err != nil {
		return nil, err
	}
	if enabled {
		e, err := notify.NewEmail(emailCfg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, e)
	}

	tgCfg := cfg.Notify.Telegram.notifier()
	enabled, err = tgCfg.Validate()
	if err != nil {
		return nil, err
	}
	if enabled {
		tg, err := notify.NewTelegram(tgCfg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}

	return notify.All(notifiers...), nil
}

// BuildSourceOptions returns the HTTP source options set in cfg.
func BuildSourceOptions(cfg *Config) []tinybots.SourceOption {
	var opts []tinybots.SourceOption
	if cfg.UserAgent != "" {
		opts = append(opts, tinybots.WithUserAgent(cfg.UserAgent))
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst == 0 {
			burst = 1
		}
		opts = append(opts, tinybots.WithRateLimit(cfg.RateLimit, burst))
	}
	return opts
}

// BuildOptions returns the watcher options set in cfg, including the
// notifier built by [BuildNotifier].
func BuildOptions(cfg *Config) ([]tinybots.Option, error) {
	policy, err := tinybots.ParseMismatchPolicy(cfg.MismatchPolicy)
	if err != nil {
		return nil, err
	}

	opts := []tinybots.Option{
		tinybots.WithInterval(cfg.Interval.Duration()),
		tinybots.WithJitter(cfg.MinJitter.Duration(), cfg.MaxJitter.Duration()),
		tinybots.WithMismatchPolicy(policy),
	}
	if cfg.Name != "" {
		opts = append(opts, tinybots.WithName(cfg.Name))
	}
	if cfg.Message != "" {
		opts = append(opts, tinybots.WithMessage(cfg.Message))
	}
	if cfg.Subject != "" {
		opts = append(opts, tinybots.WithSubject(cfg.Subject))
	}
	if cfg.StatusAddr != "" {
		opts = append(opts, tinybots.WithStatusAddr(cfg.StatusAddr))
	}

	n, err := BuildNotifier(cfg)
	if err != nil {
		return nil, err
	}
	if n != nil {
		opts = append(opts, tinybots.WithNotifier(n))
	}
	return opts, nil
}

func (e EmailConfig) notifier() notify.EmailConfig {
	return notify.EmailConfig{
		From:     e.From,
		To:       e.To,
		Server:   e.Server,
		Port:     e.Port,
		Username: e.Username,
		Password: e.Password,
		TLS:      notify.TLSMode(e.TLS),
	}
}

func (t TelegramConfig) notifier() notify.TelegramConfig {
	return notify.TelegramConfig{Token: t.Token, ChatID: t.ChatID}
}
