// Package store provides storage and pub/sub functionality for job state.
//
// This package is internal to statusbar and keeps the last known state of
// every job discovered on the page. It implements a publish-subscribe pattern
// so connected browsers mirror progress updates and reload requests.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [JobStatus]: Storage representation of a job's progress
//   - [Event]: An update or reload message delivered to subscribers
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers receive events via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
//
// Users of the statusbar library should not need to interact with this
// package directly. Storage is managed internally by the statusbar Poller.
package store
