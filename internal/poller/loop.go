package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Outcome values carried by [Result].
//
// These mirror the tinybots.Outcome constants as plain strings so this package
// does not import the SDK package.
const (
	OutcomeAvailable   = "available"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// State is the loop's lifecycle state.
type State string

const (
	// StatePolling is the initial state. Failures are absorbed back into it.
	StatePolling State = "polling"

	// StateDone is terminal and is entered only through an accepted available result.
	StateDone State = "done"
)

// Phase identifies where in a poll cycle a [Cycle] event was emitted.
type Phase string

const (
	PhaseChecking Phase = "checking"
	PhaseSleeping Phase = "sleeping"
	PhaseDone     Phase = "done"
)

// Result is the poller-internal view of a single availability check.
type Result struct {
	// Outcome is one of OutcomeAvailable, OutcomeUnavailable or OutcomeFailed.
	Outcome string

	// Label names the vendor or variant that matched. Set only when available.
	Label string

	// Reason describes a transient failure. Set only when failed.
	Reason string

	// Mismatches holds near-match diagnostics reported by the check.
	Mismatches []string
}

// Cycle describes one step of the loop for observers.
type Cycle struct {
	// Number is the 1-based poll cycle count.
	Number int

	// Phase is the step within the cycle.
	Phase Phase

	// Result is the check outcome. Zero for PhaseChecking.
	Result Result

	// Delay is the sleep about to start. Set only for PhaseSleeping.
	Delay time.Duration
}

// CheckFunc performs one availability check.
type CheckFunc func(ctx context.Context) Result

// NotifyFunc delivers the success message for a label.
type NotifyFunc func(ctx context.Context, result Result) error

// SleepFunc suspends the loop between cycles. It returns early with the
// context error only when ctx is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config is the immutable loop configuration.
type Config struct {
	// BaseInterval is the fixed part of the delay between cycles.
	BaseInterval time.Duration

	// MinJitter and MaxJitter bound the random delay added to BaseInterval.
	MinJitter time.Duration
	MaxJitter time.Duration

	// RejectMismatches treats available results with mismatches as unavailable.
	RejectMismatches bool
}

// Hooks are optional observers of the loop. Panics inside hooks are recovered.
type Hooks struct {
	OnState func(State)
	OnCycle func(Cycle)
}

// Loop runs the check/decide/notify/sleep cycle until an available result is
// accepted.
//
// Loop is strictly sequential: one cycle executes fully before the next one
// begins, and no state is carried from one cycle to the next.
type Loop struct {
	check  CheckFunc
	notify NotifyFunc
	cfg    Config
	hooks  Hooks
	jitter *Jitter
	sleep  SleepFunc
	logger *slog.Logger
}

// NewLoop creates a new [Loop].
//
// Parameters:
//   - check: The availability check run once per cycle
//   - notify: Success delivery, may be nil when no notification channel is configured
//   - cfg: Interval, jitter and mismatch policy
//   - hooks: Optional state and cycle observers
//   - logger: Logger for progress lines and recovered panics
//
// The loop sleeps with a timer unless a different [SleepFunc] is installed
// with [Loop.SetSleep].
func NewLoop(check CheckFunc, notify NotifyFunc, cfg Config, hooks Hooks, logger *slog.Logger) *Loop {
	return &Loop{
		check:  check,
		notify: notify,
		cfg:    cfg,
		hooks:  hooks,
		jitter: NewJitter(cfg.MinJitter, cfg.MaxJitter, nil),
		sleep:  Sleep,
		logger: logger,
	}
}

// SetSleep replaces the sleep between cycles. A nil fn restores [Sleep].
func (l *Loop) SetSleep(fn SleepFunc) {
	if fn == nil {
		fn = Sleep
	}
	l.sleep = fn
}

// SetJitter replaces the delay sampler.
func (l *Loop) SetJitter(j *Jitter) {
	if j != nil {
		l.jitter = j
	}
}

// Run polls until the check reports an accepted available result.
//
// Run returns the terminal result with a nil error once the loop is done.
// The only other way out is cancellation of ctx, which is how process
// termination reaches the loop; Run then returns ctx.Err(). Failed checks and
// failed notifications are logged and never end the loop early.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	l.setState(StatePolling)

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		l.emit(Cycle{Number: n, Phase: PhaseChecking})
		l.logger.Info("checking availability", "cycle", n)

		result := l.safeCheck(ctx)

		switch result.Outcome {
		case OutcomeAvailable:
			if len(result.Mismatches) > 0 && l.cfg.RejectMismatches {
				l.logger.Warn("near match ignored",
					"cycle", n,
					"label", result.Label,
					"mismatches", result.Mismatches,
				)
				result.Outcome = OutcomeUnavailable
				break
			}
			if len(result.Mismatches) > 0 {
				l.logger.Warn("item available with mismatches",
					"cycle", n,
					"label", result.Label,
					"mismatches", result.Mismatches,
				)
			}
			l.logger.Info("item available", "cycle", n, "label", result.Label)
			l.deliver(ctx, result)
			l.emit(Cycle{Number: n, Phase: PhaseDone, Result: result})
			l.setState(StateDone)
			return result, nil

		case OutcomeFailed:
			l.logger.Warn("availability check failed", "cycle", n, "reason", result.Reason)

		default:
			l.logger.Info("not available yet, still need to wait", "cycle", n)
		}

		delay := l.jitter.Delay(l.cfg.BaseInterval)
		l.emit(Cycle{Number: n, Phase: PhaseSleeping, Result: result, Delay: delay})
		l.logger.Info("sleeping until next check",
			"cycle", n,
			"delay", delay.String(),
			"next_check_at", time.Now().Add(delay).Format(time.RFC3339),
		)

		if err := l.sleep(ctx, delay); err != nil {
			return Result{}, err
		}
	}
}

// safeCheck runs the check with panic recovery.
// A panicking check counts as a failed check carrying a correlation ID; the
// full stack trace is logged.
func (l *Loop) safeCheck(ctx context.Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			l.logger.Error("check panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			result = Result{
				Outcome: OutcomeFailed,
				Reason:  fmt.Sprintf("check panic (correlation_id: %s)", correlationID),
			}
		}
	}()

	result = l.check(ctx)
	if result.Outcome == "" {
		result.Outcome = OutcomeUnavailable
	}
	return result
}

// deliver calls the notify func. Errors and panics are logged, never returned:
// termination is driven by detection, not by delivery.
func (l *Loop) deliver(ctx context.Context, result Result) {
	if l.notify == nil {
		l.logger.Info("no notification channel configured", "label", result.Label)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("notification panic",
				"correlation_id", uuid.NewString(),
				"label", result.Label,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	if err := l.notify(ctx, result); err != nil {
		l.logger.Error("notification failed", "label", result.Label, "error", err)
		return
	}
	l.logger.Info("notification sent", "label", result.Label)
}

func (l *Loop) setState(s State) {
	if l.hooks.OnState == nil {
		return
	}
	defer l.recoverHook("state")
	l.hooks.OnState(s)
}

func (l *Loop) emit(c Cycle) {
	if l.hooks.OnCycle == nil {
		return
	}
	defer l.recoverHook("cycle")
	l.hooks.OnCycle(c)
}

func (l *Loop) recoverHook(kind string) {
	if r := recover(); r != nil {
		l.logger.Error("callback panicked", "callback", kind, "panic", r)
	}
}

// Sleep waits for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
