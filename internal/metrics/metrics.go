// Package metrics collects Prometheus metrics for the poll loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records poll loop metrics. A nil *Collector is valid and records
// nothing, so callers need not check whether metrics are enabled.
type Collector struct {
	checks         *prometheus.CounterVec
	vendorAttempts *prometheus.CounterVec
	vendorLatency  *prometheus.HistogramVec
	notifications  *prometheus.CounterVec
	cycle          prometheus.Gauge
	done           prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinybots_checks_total",
			Help: "Availability checks by outcome.",
		}, []string{"outcome"}),
		vendorAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinybots_vendor_attempts_total",
			Help: "Vendor queries by vendor and outcome.",
		}, []string{"vendor", "outcome"}),
		vendorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tinybots_vendor_latency_seconds",
			Help:    "Vendor request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"vendor"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinybots_notifications_total",
			Help: "Notification deliveries by result.",
		}, []string{"result"}),
		cycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinybots_cycle",
			Help: "Current poll cycle number.",
		}),
		done: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinybots_done",
			Help: "1 once the watched item was found, 0 while polling.",
		}),
	}

	reg.MustRegister(
		c.checks,
		c.vendorAttempts,
		c.vendorLatency,
		c.notifications,
		c.cycle,
		c.done,
	)

	return c
}

// RecordCheck records a completed check for the given cycle.
func (c *Collector) RecordCheck(cycle int, outcome string) {
	if c == nil {
		return
	}
	c.cycle.Set(float64(cycle))
	c.checks.WithLabelValues(outcome).Inc()
}

// RecordVendorAttempt records one vendor query.
func (c *Collector) RecordVendorAttempt(vendor, outcome string, latency time.Duration) {
	if c == nil {
		return
	}
	c.vendorAttempts.WithLabelValues(vendor, outcome).Inc()
	c.vendorLatency.WithLabelValues(vendor).Observe(latency.Seconds())
}

// RecordNotification records a delivery attempt. result is "sent", "failed"
// or "skipped".
func (c *Collector) RecordNotification(result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(result).Inc()
}

// SetDone flips the done gauge.
func (c *Collector) SetDone(done bool) {
	if c == nil {
		return
	}
	if done {
		c.done.Set(1)
		return
	}
	c.done.Set(0)
}
