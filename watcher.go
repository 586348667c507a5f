package tinybots

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ahbrosha/tiny-bots/dashboard"
	"github.com/ahbrosha/tiny-bots/internal/metrics"
	"github.com/ahbrosha/tiny-bots/internal/poller"
	"github.com/ahbrosha/tiny-bots/internal/server"
	"github.com/ahbrosha/tiny-bots/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultInterval  = 20 * time.Minute
	defaultMinJitter = 3 * time.Minute
	defaultMaxJitter = 7 * time.Minute
	defaultName      = "tinybots"
)

// Watcher polls a [StockSource] until the item is available, then notifies.
//
// Watcher is created using [New] with functional options and started with
// [Watcher.Run]. The typical lifecycle is:
//
//	w, err := tinybots.New(source,
//	    tinybots.WithNotifier(mailer),
//	    tinybots.WithInterval(20*time.Minute),
//	)
//	if err != nil {
//	    slog.Error("failed to create watcher", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	result, err := w.Run(ctx) // blocks until the item is found or ctx is cancelled
//
// A Watcher runs once; it carries no state from one cycle to the next.
type Watcher struct {
	name           string
	source         StockSource
	notifier       Notifier
	templates      messageTemplates
	interval       time.Duration
	minJitter      time.Duration
	maxJitter      time.Duration
	mismatchPolicy MismatchPolicy
	statusAddr     string
	logger         *slog.Logger
	stateCallbacks []func(State)
	cycleCallbacks []func(CycleEvent)
	metrics        *metrics.Collector
	gatherer       prometheus.Gatherer
	state          atomic.Value

	// sleep replaces the timer between cycles; nil uses poller.Sleep
	sleep poller.SleepFunc
}

// New creates a [Watcher] for source with the given options.
//
// Defaults:
//   - Interval: 20 minutes
//   - Jitter: 3 to 7 minutes
//   - Mismatch policy: accept
//   - No notifier, no status server
//
// Returns an error if source is nil or any option is invalid. Nothing is
// polled until [Watcher.Run] is called.
func New(source StockSource, opts ...Option) (*Watcher, error) {
	if source == nil {
		return nil, fmt.Errorf("stock source is required")
	}

	cfg := &watchConfig{
		name:           defaultName,
		interval:       defaultInterval,
		minJitter:      defaultMinJitter,
		maxJitter:      defaultMaxJitter,
		message:        DefaultMessage,
		subject:        DefaultSubject,
		mismatchPolicy: MismatchAccept,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	templates, err := parseMessageTemplates(cfg.subject, cfg.message)
	if err != nil {
		return nil, err
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	// metrics are collected when explicitly registered or when served
	registerer, gatherer := cfg.registerer, cfg.gatherer
	if registerer == nil && cfg.statusAddr != "" {
		reg := prometheus.NewRegistry()
		registerer, gatherer = reg, reg
	}
	var collector *metrics.Collector
	if registerer != nil {
		collector = metrics.NewCollector(registerer)
	}

	w := &Watcher{
		name:           cfg.name,
		source:         source,
		notifier:       cfg.notifier,
		templates:      templates,
		interval:       cfg.interval,
		minJitter:      cfg.minJitter,
		maxJitter:      cfg.maxJitter,
		mismatchPolicy: cfg.mismatchPolicy,
		statusAddr:     cfg.statusAddr,
		logger:         logger,
		stateCallbacks: cfg.stateCallbacks,
		cycleCallbacks: cfg.cycleCallbacks,
		metrics:        collector,
		gatherer:       gatherer,
	}
	w.state.Store(StatePolling)
	return w, nil
}

// Interval returns the configured base interval.
func (w *Watcher) Interval() time.Duration {
	return w.interval
}

// Jitter returns the configured jitter bounds.
func (w *Watcher) Jitter() (min, max time.Duration) {
	return w.minJitter, w.maxJitter
}

// State returns the current lifecycle state. Safe for concurrent use.
func (w *Watcher) State() State {
	return w.state.Load().(State)
}

// Run polls until the source reports an accepted available result.
//
// Each cycle checks the source, logs the outcome, and either notifies and
// stops or sleeps for the base interval plus a fresh jitter. Failed checks
// and failed notifications are logged and never end the run early.
//
// Run returns the terminal [CheckResult] and a nil error once done. It
// returns ctx.Err() only when ctx is cancelled, which is how SIGINT and
// SIGTERM reach it:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	result, err := w.Run(ctx)
//
// Returns an error if the status server fails to start.
func (w *Watcher) Run(ctx context.Context) (CheckResult, error) {
	w.logger.Info("watch starting", "name", w.name)
	w.logger.Info("polling configured",
		"interval", w.interval.String(),
		"min_jitter", w.minJitter.String(),
		"max_jitter", w.maxJitter.String(),
		"mismatch_policy", string(w.mismatchPolicy),
		"notify", w.notifier != nil,
	)

	if err := ctx.Err(); err != nil {
		return CheckResult{}, err
	}

	statusStore := store.NewMemoryStore(w.storeVendors()...)
	run := &runState{w: w, store: statusStore}

	if w.statusAddr != "" {
		// the server lives only as long as this run
		srvCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()

		httpServer := server.NewServer(statusStore, w.statusAddr, dashboard.Assets, w.gatherer, w.name, w.logger)
		if err := httpServer.Start(srvCtx); err != nil {
			return CheckResult{}, fmt.Errorf("failed to start status server: %w", err)
		}
		w.logger.Info("status server available", "addr", httpServer.Addr().String())
	}

	var notify poller.NotifyFunc
	if w.notifier != nil {
		notify = run.notify
	}

	loop := poller.NewLoop(run.check, notify, poller.Config{
		BaseInterval:     w.interval,
		MinJitter:        w.minJitter,
		MaxJitter:        w.maxJitter,
		RejectMismatches: w.mismatchPolicy == MismatchReject,
	}, poller.Hooks{
		OnState: run.onState,
		OnCycle: run.onCycle,
	}, w.logger)
	loop.SetSleep(w.sleep)

	final, err := loop.Run(ctx)
	if err != nil {
		w.logger.Info("watch stopped", "reason", err.Error())
		return CheckResult{}, err
	}

	result := run.merge(final)
	w.logger.Info("watch done", "label", result.Label)
	return result, nil
}

// storeVendors pre-registers vendors so the status page lists them in
// priority order before the first check.
func (w *Watcher) storeVendors() []store.VendorStatus {
	lister, ok := w.source.(interface{ Vendors() []Vendor })
	if !ok {
		return nil
	}
	vendors := lister.Vendors()
	out := make([]store.VendorStatus, len(vendors))
	for i, v := range vendors {
		out[i] = store.VendorStatus{Name: v.Name(), URL: v.URL()}
	}
	return out
}

// runState carries one Run's bookkeeping. Only the poll goroutine touches it.
type runState struct {
	w     *Watcher
	store *store.MemoryStore
	last  CheckResult
	watch store.WatchStatus
}

// check runs the source and converts its result for the loop. The full
// result is kept for notifications, callbacks and the status page.
func (r *runState) check(ctx context.Context) poller.Result {
	r.last = CheckResult{}

	res := r.w.source.Check(ctx)
	if res.CheckedAt.IsZero() {
		res.CheckedAt = time.Now()
	}
	r.last = res

	for _, a := range res.Attempts {
		r.w.metrics.RecordVendorAttempt(a.Vendor, string(a.Outcome), a.Latency)
		r.store.UpdateVendor(attemptToStore(a))
	}

	return poller.Result{
		Outcome:    string(res.Outcome),
		Label:      res.Label,
		Reason:     res.Reason,
		Mismatches: res.Mismatches,
	}
}

// merge rebuilds the public result from the loop's view of the last check.
// The loop may have downgraded a near match or replaced a panicking check.
func (r *runState) merge(pr poller.Result) CheckResult {
	res := r.last
	if res.CheckedAt.IsZero() {
		res.CheckedAt = time.Now()
	}
	res.Outcome = Outcome(pr.Outcome)
	res.Reason = pr.Reason
	res.Mismatches = append([]string(nil), pr.Mismatches...)

	res.Label = ""
	if res.Outcome == OutcomeAvailable {
		res.Label = pr.Label
	}
	if res.Outcome != OutcomeFailed {
		res.Reason = ""
	}
	return res
}

// notify builds and delivers the notification. Panics become errors so the
// failure is counted like any other.
func (r *runState) notify(ctx context.Context, pr poller.Result) (err error) {
	n := r.w.templates.build(r.merge(pr))

	defer func() {
		if rec := recover(); rec != nil {
			err = &NotificationError{Label: n.Label, Err: fmt.Errorf("notifier panic: %v", rec)}
		}
		if err != nil {
			r.w.metrics.RecordNotification("failed")
			return
		}
		r.w.metrics.RecordNotification("sent")
	}()

	if nerr := r.w.notifier.Notify(ctx, n); nerr != nil {
		return &NotificationError{Label: n.Label, Err: nerr}
	}
	return nil
}

func (r *runState) onState(s poller.State) {
	state := State(s)
	r.w.state.Store(state)
	r.w.metrics.SetDone(state == StateDone)
	if state == StateDone && r.w.notifier == nil {
		r.w.metrics.RecordNotification("skipped")
	}

	r.watch.Name = r.w.name
	r.watch.State = string(state)
	r.watch.UpdatedAt = time.Now()
	r.store.SetWatch(r.watch)

	for _, cb := range r.w.stateCallbacks {
		invokeCallbackSafe(r.w.logger, "state", func() { cb(state) })
	}
}

func (r *runState) onCycle(c poller.Cycle) {
	ev := CycleEvent{Cycle: c.Number, Phase: Phase(c.Phase)}

	r.watch.Cycle = c.Number
	r.watch.Phase = string(c.Phase)
	r.watch.NextCheckAt = nil
	r.watch.UpdatedAt = time.Now()

	if c.Phase != poller.PhaseChecking {
		ev.Result = r.merge(c.Result)
		r.w.metrics.RecordCheck(c.Number, string(ev.Result.Outcome))

		r.watch.Outcome = string(ev.Result.Outcome)
		r.watch.Label = ev.Result.Label
		r.watch.Reason = ev.Result.Reason
		r.watch.Mismatches = ev.Result.Mismatches
	}
	if c.Phase == poller.PhaseSleeping {
		ev.Delay = c.Delay
		ev.NextCheckAt = time.Now().Add(c.Delay)
		next := ev.NextCheckAt
		r.watch.NextCheckAt = &next
	}
	r.store.SetWatch(r.watch)

	for _, cb := range r.w.cycleCallbacks {
		invokeCallbackSafe(r.w.logger, "cycle", func() { cb(ev) })
	}
}

// attemptToStore converts a vendor attempt to its storage form.
func attemptToStore(a Attempt) store.VendorStatus {
	var errStr *string
	if a.Reason != "" {
		s := a.Reason
		errStr = &s
	}

	return store.VendorStatus{
		Name:           a.Vendor,
		Outcome:        string(a.Outcome),
		StatusCode:     a.StatusCode,
		ResponseTimeMs: a.Latency.Milliseconds(),
		CheckedAt:      a.CheckedAt,
		Error:          errStr,
	}
}

// invokeCallbackSafe calls a user callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(logger *slog.Logger, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked", "callback", kind, "panic", r)
		}
	}()
	fn()
}
