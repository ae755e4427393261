// Package replica provides a replicated chunked transfer engine for
// S3-compatible object storage. It uploads local files to several storage
// backends at once, reads them back through priority-ordered failover,
// and reports per-backend outcomes so callers can tell full replication
// from degraded success from failure.
//
// The engine emphasizes predictable behavior through simple APIs while
// maintaining performance through intelligent defaults for part sizing,
// concurrency, buffering, and retries.
//
// Key features:
//   - Replication to any number of S3-compatible backends with a
//     configurable success quorum
//   - Automatic multipart upload with deterministic chunk planning
//   - Ranged, memory-bounded downloads with backend failover
//   - Throttled progress snapshots for long transfers
//   - HMAC-signed access tokens and per-identity rate limiting
//   - Comprehensive error handling with per-backend context
//
// Example usage:
//
//	engine, err := replica.New(
//	    replica.WithTargets(primary, mirror),
//	    replica.WithQuorum(2),
//	)
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	// Replicate a file
//	result, err := engine.Upload(ctx, replicatypes.TransferJob{
//	    ObjectName: "report.pdf",
//	    SourcePath: "/local/report.pdf",
//	    Size:       size,
//	    Owner:      "alice",
//	})
//	if err != nil {
//	    return err
//	}
package replica
