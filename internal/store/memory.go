package store

import (
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Vendors keep the order they were registered in with
// [NewMemoryStore]; unregistered vendors are appended in first-seen order.
//
// Subscribers receive snapshots via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// snapshot is dropped for that subscriber to prevent blocking the poll loop.
type MemoryStore struct {
	mu          sync.RWMutex
	watch       WatchStatus
	order       []string
	vendors     map[string]VendorStatus
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] with vendors pre-registered
// in priority order. Each starts with an empty outcome.
func NewMemoryStore(vendors ...VendorStatus) *MemoryStore {
	m := &MemoryStore{
		vendors:     make(map[string]VendorStatus, len(vendors)),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, v := range vendors {
		if _, ok := m.vendors[v.Name]; ok {
			continue
		}
		m.order = append(m.order, v.Name)
		m.vendors[v.Name] = v
	}
	return m
}

// SetWatch replaces the watch status and notifies all subscribers.
func (m *MemoryStore) SetWatch(status WatchStatus) {
	m.mu.Lock()
	status.Mismatches = copyStrings(status.Mismatches)
	m.watch = status
	m.mu.Unlock()

	m.notifySubscribers(m.Snapshot())
}

// UpdateVendor stores a vendor's latest attempt and notifies all subscribers.
//
// The URL of a pre-registered vendor is kept when the update carries none.
func (m *MemoryStore) UpdateVendor(status VendorStatus) {
	m.mu.Lock()
	prev, ok := m.vendors[status.Name]
	if !ok {
		m.order = append(m.order, status.Name)
	}
	if status.URL == "" {
		status.URL = prev.URL
	}
	m.vendors[status.Name] = status
	m.mu.Unlock()

	m.notifySubscribers(m.Snapshot())
}

// Snapshot returns a copy of the current state.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	watch := m.watch
	watch.Mismatches = copyStrings(watch.Mismatches)

	vendors := make([]VendorStatus, 0, len(m.order))
	for _, name := range m.order {
		vendors = append(vendors, m.vendors[name])
	}
	return Snapshot{Watch: watch, Vendors: vendors}
}

// Subscribe creates a new subscription and returns a channel for receiving
// snapshots.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new snapshots are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers without
// blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the message
		}
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
