package store

import "time"

// WatchStatus is the storage representation of the poll loop's progress.
type WatchStatus struct {
	// Name is the watch's display name, e.g. "RTX 3080".
	Name string `json:"name"`

	// State is "polling" or "done".
	State string `json:"state"`

	// Cycle is the current 1-based poll cycle.
	Cycle int `json:"cycle"`

	// Phase is the current step: "checking", "sleeping" or "done".
	Phase string `json:"phase"`

	// Outcome is the last check's outcome. Empty before the first check.
	Outcome string `json:"outcome,omitempty"`

	// Label is the matched vendor once available.
	Label string `json:"label,omitempty"`

	// Reason is the last failure reason.
	Reason string `json:"reason,omitempty"`

	// Mismatches holds near-match diagnostics from the last check.
	Mismatches []string `json:"mismatches,omitempty"`

	// NextCheckAt is when the next cycle starts. nil unless sleeping.
	NextCheckAt *time.Time `json:"next_check_at"`

	// UpdatedAt is when this status was recorded.
	UpdatedAt time.Time `json:"updated_at"`
}

// VendorStatus is the storage representation of a vendor's latest attempt.
type VendorStatus struct {
	// Name is the vendor's display name.
	Name string `json:"name"`

	// URL is the queried URL.
	URL string `json:"url"`

	// Outcome is "available", "unavailable" or "failed". Empty until the
	// vendor has been queried at least once.
	Outcome string `json:"outcome"`

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int `json:"status_code"`

	// ResponseTimeMs is the request latency in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// CheckedAt is the timestamp of the last attempt.
	CheckedAt time.Time `json:"checked_at"`

	// Error contains the failure reason. nil when the attempt did not fail.
	Error *string `json:"error"`
}

// Snapshot is the full status view served by the API.
type Snapshot struct {
	Watch   WatchStatus    `json:"watch"`
	Vendors []VendorStatus `json:"vendors"`
}

// Store defines the interface for storing and subscribing to status updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism pushes every change as a full [Snapshot] to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// SetWatch replaces the watch status and notifies all subscribers.
	SetWatch(status WatchStatus)

	// UpdateVendor stores a vendor's latest attempt and notifies all
	// subscribers. Results are keyed by Name.
	UpdateVendor(status VendorStatus)

	// Snapshot returns the current state. Vendors are in priority order.
	// The returned value is a copy; modifications do not affect the store.
	Snapshot() Snapshot

	// Subscribe returns a channel that receives snapshots after each change.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
