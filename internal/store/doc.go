// Package store holds the latest watch status for the status server.
//
// This package is internal to tinybots. It keeps the poll loop's current
// state and each vendor's latest attempt in memory, and publishes a full
// snapshot to subscribers after every change.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: Watch status plus vendors in priority order
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the poll loop).
//
// Nothing here survives a restart; every cycle recomputes its result.
package store
