// Package internal contains private implementation details for the replica
// engine. These packages are not intended for external use and may change
// without notice.
//
// The internal packages are organized as follows:
//   - planner: Deterministic multipart part planning
//   - coordinator: Concurrent replication of one object across backends
//   - downloader: Ranged single-backend downloads
//   - failover: Priority-ordered read failover
//   - progress: Throttled transfer progress accounting
//   - retry: Retry policies for transient backend errors
//   - scratch: Per-job temporary directories
//   - validation: Input validation logic
//   - pool: Memory management optimizations
//   - s3api: The S3 API surface the backend depends on
//   - testutil: Shared test fixtures and mocks
package internal
