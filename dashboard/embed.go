// Package dashboard provides the embedded status page for a running watch.
//
// The page is a single HTML file with inline CSS and JavaScript that renders
// the snapshots streamed from /api/sse. It is embedded at compile time so the
// binary can run unattended on a single-board computer without asset files.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the status page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Status page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
