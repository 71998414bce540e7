// Package job holds the per-job progress state machine for statusbar.
//
// This package is internal to statusbar and contains no I/O. It decodes a
// status payload using the configured key names and derives the next job
// state together with the side effects the poller must carry out:
//
//   - [Decode]: turns a JSON response body into a [Payload]
//   - [Transition]: maps (state, payload) to (next state, effects)
//   - [UpdateIndicators] and [ScheduleReload]: the effects
//
// Keeping these rules pure lets the "skip on falsy percentage" and
// "100 triggers reload" behaviour be tested without timers or a network.
package job
