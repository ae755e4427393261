// Package failover walks a priority-ordered backend chain until one
// backend serves the request.
//
// Failures never hide each other: every attempt is recorded, and when the
// whole chain is spent the caller receives all of them in one error. Only
// caller cancellation stops the walk early.
package failover
