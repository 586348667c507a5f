package tinybots

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MismatchPolicy decides what to do with an available result that carries
// near-match diagnostics, e.g. a partner card found when only founders
// edition cards were asked for.
type MismatchPolicy string

const (
	// MismatchAccept treats a near match as a match and logs a warning.
	MismatchAccept MismatchPolicy = "accept"

	// MismatchReject treats a near match as unavailable and keeps polling.
	MismatchReject MismatchPolicy = "reject"
)

// ParseMismatchPolicy parses "accept" or "reject" (case-insensitive).
// An empty string yields [MismatchAccept].
func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch MismatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MismatchAccept:
		return MismatchAccept, nil
	case MismatchReject:
		return MismatchReject, nil
	default:
		return "", fmt.Errorf("mismatch policy must be accept or reject, got %q", s)
	}
}

// watchConfig holds mutable state during Watcher construction.
type watchConfig struct {
	name           string
	interval       time.Duration
	minJitter      time.Duration
	maxJitter      time.Duration
	notifier       Notifier
	message        string
	subject        string
	logger         *slog.Logger
	stateCallbacks []func(State)
	cycleCallbacks []func(CycleEvent)
	mismatchPolicy MismatchPolicy
	statusAddr     string
	registerer     prometheus.Registerer
	gatherer       prometheus.Gatherer
}

// Option is a function that configures a [Watcher] during construction.
//
// Option implements the functional options pattern. Options return an error
// if validation fails; [New] then fails before anything is polled.
type Option func(*watchConfig) error

// WithName sets the watch's display name used in logs and on the status
// page, e.g. "RTX 3080".
func WithName(name string) Option {
	return func(cfg *watchConfig) error {
		cfg.name = name
		return nil
	}
}

// WithInterval sets the fixed part of the delay between poll cycles.
//
// Defaults to 20 minutes. Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *watchConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithJitter sets the bounds of the random delay added to the interval.
//
// A fresh value is drawn uniformly from [min, max] for every cycle so that
// requests do not settle into a fixed, recognisable rhythm. Defaults to
// 3 and 7 minutes.
//
// Returns an error if min is negative or greater than max.
func WithJitter(min, max time.Duration) Option {
	return func(cfg *watchConfig) error {
		if min < 0 {
			return errors.New("minimum jitter must not be negative")
		}
		if min > max {
			return fmt.Errorf("minimum jitter %s exceeds maximum %s", min, max)
		}
		cfg.minJitter = min
		cfg.maxJitter = max
		return nil
	}
}

// WithNotifier sets the channel used once the item is available.
//
// Without a notifier the watcher only logs the find. Use notify.All to send
// through several channels. Nil notifiers are ignored.
func WithNotifier(n Notifier) Option {
	return func(cfg *watchConfig) error {
		cfg.notifier = n
		return nil
	}
}

// WithMessage sets the notification text as a text/template rendered with a
// [Notification]. Defaults to [DefaultMessage].
//
// Example:
//
//	tinybots.WithMessage("Hooray! {{.Label}} has the card in stock!")
func WithMessage(tmpl string) Option {
	return func(cfg *watchConfig) error {
		if strings.TrimSpace(tmpl) == "" {
			return errors.New("message cannot be empty")
		}
		cfg.message = tmpl
		return nil
	}
}

// WithSubject sets the notification subject as a text/template.
// Defaults to [DefaultSubject].
func WithSubject(tmpl string) Option {
	return func(cfg *watchConfig) error {
		if strings.TrimSpace(tmpl) == "" {
			return errors.New("subject cannot be empty")
		}
		cfg.subject = tmpl
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the watcher.
//
// If not specified, [slog.Default] is used. Returns an error if the logger
// is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *watchConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStateCallback registers a function called on every state transition:
// once with [StatePolling] when Run starts and once with [StateDone].
//
// Callbacks run synchronously on the poll goroutine and must not block.
// Panics are recovered and logged. Nil callbacks are ignored.
func WithStateCallback(cb func(State)) Option {
	return func(cfg *watchConfig) error {
		if cb == nil {
			return nil
		}
		cfg.stateCallbacks = append(cfg.stateCallbacks, cb)
		return nil
	}
}

// WithCycleCallback registers a function called for every [CycleEvent].
//
// Multiple callbacks execute in registration order. Callbacks run
// synchronously on the poll goroutine and must not block. Panics are
// recovered and logged. Nil callbacks are ignored.
//
// Example:
//
//	leds := led.OrangePi3(logger)
//	tinybots.WithCycleCallback(func(e tinybots.CycleEvent) {
//	    if e.Phase == tinybots.PhaseChecking {
//	        leds.Checking()
//	    } else {
//	        leds.Idle()
//	    }
//	})
func WithCycleCallback(cb func(CycleEvent)) Option {
	return func(cfg *watchConfig) error {
		if cb == nil {
			return nil
		}
		cfg.cycleCallbacks = append(cfg.cycleCallbacks, cb)
		return nil
	}
}

// WithMismatchPolicy sets how near matches are treated.
// Defaults to [MismatchAccept].
func WithMismatchPolicy(p MismatchPolicy) Option {
	return func(cfg *watchConfig) error {
		switch p {
		case MismatchAccept, MismatchReject:
			cfg.mismatchPolicy = p
			return nil
		default:
			return fmt.Errorf("unknown mismatch policy %q", p)
		}
	}
}

// WithStatusAddr serves a status page, JSON API and Prometheus metrics on
// addr (e.g. ":9100") while the watcher runs. Disabled by default.
func WithStatusAddr(addr string) Option {
	return func(cfg *watchConfig) error {
		if strings.TrimSpace(addr) == "" {
			return errors.New("status address cannot be empty")
		}
		cfg.statusAddr = addr
		return nil
	}
}

// WithMetrics registers the watcher's metrics with reg. The status server's
// /metrics endpoint serves from reg when it is also a [prometheus.Gatherer].
//
// Without this option metrics are only collected when a status address is
// configured, using a private registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *watchConfig) error {
		if reg == nil {
			return errors.New("registerer cannot be nil")
		}
		cfg.registerer = reg
		if g, ok := reg.(prometheus.Gatherer); ok {
			cfg.gatherer = g
		}
		return nil
	}
}
