// Package coordinator replicates one local file to every configured
// backend and reports the per-backend outcomes.
//
// Each backend gets its own goroutine and its own read handle on the
// source file, so no two backends share a file cursor. Within a backend
// parts upload strictly in order; concurrency exists only across backends.
// A backend that fails mid-upload aborts its own multipart upload exactly
// once and never disturbs the others. The job as a whole succeeds when the
// committed count reaches the quorum.
package coordinator
