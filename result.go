package tinybots

import "time"

// Outcome is the tag of a [CheckResult].
//
// Outcome is a string type so results log and serialize in a human-readable
// form. Exactly one of [OutcomeAvailable], [OutcomeUnavailable] or
// [OutcomeFailed] is set on every result.
type Outcome string

const (
	// OutcomeAvailable means a vendor reported stock. Label names the vendor.
	OutcomeAvailable Outcome = "available"

	// OutcomeUnavailable means every queried vendor reported no stock.
	OutcomeUnavailable Outcome = "unavailable"

	// OutcomeFailed means the check could not be completed this cycle.
	// Reason describes the transient error.
	OutcomeFailed Outcome = "failed"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// CheckResult is the outcome of a single availability check.
//
// CheckResult is produced fresh for every poll cycle and is never persisted.
// Use [Available], [Unavailable] or [CheckFailed] to build one.
type CheckResult struct {
	// Outcome tags the result.
	Outcome Outcome

	// Label identifies the vendor, source or variant that matched.
	// Set only when Outcome is [OutcomeAvailable].
	Label string

	// Reason describes the transient error (network, HTTP status, parse).
	// Set only when Outcome is [OutcomeFailed].
	Reason string

	// Mismatches holds near-match diagnostics, e.g. "gpu is RTX 3070, want
	// RTX 3080". A non-empty slice on an available result means the item is
	// in stock but is not exactly what was asked for.
	Mismatches []string

	// Attempts records the vendors that were actually queried, in order.
	// Empty for sources that are not vendor based.
	Attempts []Attempt

	// CheckedAt is when the check completed.
	CheckedAt time.Time
}

// Available returns an available result for label.
func Available(label string) CheckResult {
	return CheckResult{Outcome: OutcomeAvailable, Label: label, CheckedAt: time.Now()}
}

// Unavailable returns a result reporting no stock.
func Unavailable() CheckResult {
	return CheckResult{Outcome: OutcomeUnavailable, CheckedAt: time.Now()}
}

// CheckFailed returns a result for a check that could not be completed.
func CheckFailed(reason string) CheckResult {
	return CheckResult{Outcome: OutcomeFailed, Reason: reason, CheckedAt: time.Now()}
}

// WithMismatches returns a copy of r carrying the given diagnostics.
func (r CheckResult) WithMismatches(mismatches ...string) CheckResult {
	r.Mismatches = append(append([]string(nil), r.Mismatches...), mismatches...)
	return r
}

// IsAvailable reports whether the result is available.
func (r CheckResult) IsAvailable() bool {
	return r.Outcome == OutcomeAvailable
}

// Mismatched reports whether the item matched but with near-match
// diagnostics attached.
func (r CheckResult) Mismatched() bool {
	return r.Outcome == OutcomeAvailable && len(r.Mismatches) > 0
}

// Attempt records one vendor query made during a check.
type Attempt struct {
	// Vendor is the vendor name.
	Vendor string

	// Outcome is the vendor-level outcome.
	Outcome Outcome

	// Reason explains a failed attempt.
	Reason string

	// Mismatches holds the vendor's near-match diagnostics.
	Mismatches []string

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int

	// Latency is the time taken by the request.
	Latency time.Duration

	// CheckedAt is when the vendor was queried.
	CheckedAt time.Time
}

// State is the lifecycle state of a [Watcher].
type State string

const (
	// StatePolling is the initial state. Failed checks are absorbed into it.
	StatePolling State = "polling"

	// StateDone is the terminal state, entered once on the first accepted
	// available result.
	StateDone State = "done"
)

// Phase identifies the step of a poll cycle reported by a [CycleEvent].
type Phase string

const (
	// PhaseChecking is emitted before the source is queried.
	PhaseChecking Phase = "checking"

	// PhaseSleeping is emitted before the inter-cycle sleep starts.
	PhaseSleeping Phase = "sleeping"

	// PhaseDone is emitted once, after the terminal notification.
	PhaseDone Phase = "done"
)

// CycleEvent describes one step of the poll loop.
type CycleEvent struct {
	// Cycle is the 1-based poll cycle number.
	Cycle int

	// Phase is the step within the cycle.
	Phase Phase

	// Result is the check outcome. Zero value for PhaseChecking.
	Result CheckResult

	// Delay is the upcoming sleep. Set only for PhaseSleeping.
	Delay time.Duration

	// NextCheckAt is when the next cycle starts. Set only for PhaseSleeping.
	NextCheckAt time.Time
}
