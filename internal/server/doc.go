// Package server provides the HTTP server for the statusbar job page and API.
//
// This package is internal to statusbar and handles all HTTP concerns:
//
//   - Page serving: the job page, with its indicators kept current, at "/"
//   - REST API: JSON endpoint at "/api/jobs" for a snapshot of all jobs
//   - Server-Sent Events: update and reload events at "/api/sse"
//   - Client script: the embedded script that mirrors events at "/assets/"
//   - Metrics: Prometheus exposition at "/metrics"
//
// Routing uses chi. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
//
// Users of the statusbar library should not need to interact with this
// package directly. The server is started by the statusbar Poller when a
// port is configured.
package server
