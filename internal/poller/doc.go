// Package poller drives the shared polling loop for statusbar.
//
// This package is internal to statusbar and handles the periodic polling of
// job status endpoints. One shared ticker re-polls every due job on each
// tick; by default every due job's request starts at once.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout and size limits
//   - [Scheduler]: startup delay, shared ticker, per-job cancellation
//   - [RetryPolicy]: how failed jobs back off and when they are given up
//   - [Result]: outcome of polling a single job on a single tick
//
// Each request gets its own context. A job's new tick cancels that job's
// request still in flight, so a slow response from an older tick can never be
// delivered after a newer one was issued. Other jobs are unaffected.
//
// Users of the statusbar library should not need to interact with this
// package directly. Configuration is done through the main statusbar package.
package poller
