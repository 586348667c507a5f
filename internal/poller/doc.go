// Package poller provides the availability polling loop for tinybots.
//
// This package is internal to tinybots and runs the check, decide, notify and
// sleep cycle. Cycles are strictly sequential and each delay is the base
// interval plus a freshly drawn jitter.
//
// The main components are:
//
//   - [Loop]: Runs cycles until an accepted available result
//   - [Jitter]: Samples the random part of the inter-cycle delay
//   - [Client]: HTTP client wrapper with rate limiting and size limits
//   - [Result]: Outcome of a single availability check
//
// Users of the tinybots library should not need to interact with this
// package directly. Configuration is done through the main tinybots package.
package poller
