// Package tinybots polls product availability on a randomized schedule and
// sends a one-shot notification the moment an item is in stock.
//
// A [Watcher] drives a [StockSource] until the source reports an available
// result, then hands a [Notification] to a [Notifier] and stops. Between
// checks it sleeps for a fixed interval plus a fresh random jitter so
// requests never settle into a recognisable rhythm.
//
// # Quick Start
//
// Describe the shops to check, build a source, and run a watcher with
// graceful shutdown:
//
//	alternate := tinybots.MustVendor("Alternate", "https://www.alternate.de/...",
//	    tinybots.WithDetector(tinybots.SelectorDetector(".available_stock")),
//	)
//	src, _ := tinybots.NewHTTPSource([]tinybots.Vendor{alternate})
//	w, _ := tinybots.New(src, tinybots.WithNotifier(mailer))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	result, err := w.Run(ctx) // blocks until found or cancelled
//
// # Sources
//
// [HTTPSource] checks an ordered list of [Vendor] values and reports the
// first one in stock. Vendors earlier in the list win ties and later ones
// are not queried in that cycle. [FirstAvailable] composes any sources the
// same way, and [SourceFunc] adapts a plain function.
//
// Each vendor carries a [Detector] that reads a response body:
//
//   - [SelectorDetector]: in stock when a CSS selector matches
//   - [ContainsDetector], [AbsentDetector]: substring checks
//   - [PriceBelowDetector]: in stock when a scraped price is under a cap
//   - [JSONFieldDetector], [ExpectJSONField]: JSON API status and near-match checks
//
// [NewVendorGrid] expands a URL template into one vendor per variant.
//
// # Results
//
// Every check yields a [CheckResult] tagged available, unavailable or
// failed. Failed checks are transient: they are logged and polling
// continues. An available result may carry mismatches, e.g. a partner card
// when only founders edition cards were wanted; [WithMismatchPolicy]
// decides whether such a near match ends the watch.
//
// # Notification
//
// Notification happens at most once per run. A failed or panicking notifier
// is logged and the watcher still reaches [StateDone], because termination
// is driven by detection rather than delivery. Subpackage notify provides
// email and Telegram channels.
//
// # Observability
//
// [WithStateCallback] and [WithCycleCallback] report lifecycle and cycle
// events. [WithStatusAddr] serves a status page, a JSON API with Server-Sent
// Events and Prometheus metrics while the watcher runs.
package tinybots
