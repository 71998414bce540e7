// Package page discovers tracked jobs in an HTML document and mutates their
// progress indicators.
//
// This package is internal to statusbar. A [Page] wraps a goquery document.
// Jobs are found by four CSS class selectors whose matches must line up by
// index: the Nth starting marker belongs to the Nth progress bar, indicator
// and status label. Misaligned selections fail fast with [ErrMisaligned].
//
// The main components are:
//
//   - [Source]: loads raw HTML from a file, URL or string
//   - [Page]: parsed document with discovery, mutation and rendering
//   - [Holder]: the currently served page, swapped on every reload
//
// All Page methods are safe for concurrent use.
package page
