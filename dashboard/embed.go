// Package dashboard provides the embedded browser client for statusbar.
//
// This package uses Go's embed directive to include the client script at
// compile time. The script is injected into the served job page; it opens an
// EventSource on the server's SSE endpoint, mirrors indicator updates into
// the DOM and reloads the page when asked to. This enables single-binary
// deployment without external asset files.
//
// Users of the statusbar library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the browser client.
//
// The filesystem structure is:
//
//	assets/
//	  statusbar.js  - EventSource client applying update and reload events
//
// Assets is used by the server package to serve the script under /assets/.
//
//go:embed assets/*
var Assets embed.FS
