// Package server provides the HTTP status server for a running watch.
//
// This package is internal to tinybots and handles all HTTP concerns:
//
//   - Status page: Serves the embedded HTML page at "/"
//   - REST API: JSON snapshot at "/api/status"
//   - Server-Sent Events: Real-time snapshots at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// The server only reads snapshots; the poll loop never waits on it.
package server
