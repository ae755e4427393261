// Package replica provides functional options for configuring engine behavior.
// These options follow the functional options pattern for clean, composable configuration.
package replica

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/rs/zerolog"

	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// WithTargets sets the storage backends objects replicate to.
// At least one target is required; the engine sorts them by priority.
func WithTargets(targets ...replicatypes.Target) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.Targets = append([]replicatypes.Target(nil), targets...)
	}
}

// WithQuorum sets how many backends must commit an object for an upload
// to succeed. Values outside [1, len(targets)] are clamped at run time.
// Default is 1.
func WithQuorum(quorum int) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.Quorum = quorum
	}
}

// WithMinPartSize sets the smallest multipart part size.
// Default is 5MB.
func WithMinPartSize(size int64) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if size > 0 {
			c.MinPartSize = size
		}
	}
}

// WithMaxPartSize sets the upper bound on the planned part size.
// Default is 8MB.
func WithMaxPartSize(size int64) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if size > 0 {
			c.MaxPartSize = size
		}
	}
}

// WithTargetPartCount sets the preferred number of parts per multipart
// upload. The planner clamps the resulting part size to the configured
// bounds. Default is 50.
func WithTargetPartCount(count int) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if count > 0 {
			c.TargetPartCount = count
		}
	}
}

// WithMultipartThreshold sets the object size at which uploads switch
// from a single put to a multipart upload. Default is 100MB.
func WithMultipartThreshold(threshold int64) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if threshold > 0 {
			c.MultipartThreshold = threshold
		}
	}
}

// WithDownloadChunkSize sets the ranged-read chunk size for downloads.
// Default is 8MB.
func WithDownloadChunkSize(size int64) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if size > 0 {
			c.DownloadChunkSize = size
		}
	}
}

// WithMaxObjectSize sets the largest object Upload accepts.
// Default is 2GB.
func WithMaxObjectSize(size int64) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if size > 0 {
			c.MaxObjectSize = size
		}
	}
}

// WithBackendConcurrency bounds how many backends replicate at once
// during an upload. Default is 0, meaning all backends run concurrently.
func WithBackendConcurrency(limit int) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if limit > 0 {
			c.BackendConcurrency = limit
		}
	}
}

// WithCallTimeout bounds each individual backend call.
// Default is 2 minutes. Set to 0 to disable the per-call bound.
func WithCallTimeout(timeout time.Duration) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if timeout >= 0 {
			c.CallTimeout = timeout
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts for transient
// backend errors. Default is 3 retries. Set to 0 to disable retries.
func WithMaxRetries(maxRetries int) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if maxRetries >= 0 {
			c.MaxRetries = maxRetries
		}
	}
}

// WithTokenSecret enables access tokens, signed with the given secret.
// Without a secret the engine issues no tokens and verifies none.
func WithTokenSecret(secret []byte) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.TokenSecret = append([]byte(nil), secret...)
	}
}

// WithTokenTTL sets the access-token lifetime. Default is 1 hour.
func WithTokenTTL(ttl time.Duration) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if ttl > 0 {
			c.TokenTTL = ttl
		}
	}
}

// WithShareTTL sets the default share-link lifetime. Default is 7 days.
func WithShareTTL(ttl time.Duration) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if ttl > 0 {
			c.ShareTTL = ttl
		}
	}
}

// WithRateLimit sets the admission gate's limit per identity per period.
// Default is 10 per minute. A non-positive limit disables the gate, so
// Allow always admits.
func WithRateLimit(limit int, period time.Duration) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.RateLimit = limit
		if period > 0 {
			c.RatePeriod = period
		}
	}
}

// WithScratchRoot sets the directory downloads without an explicit
// destination land under. Default is the OS temp directory.
func WithScratchRoot(root string) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.ScratchRoot = root
	}
}

// WithProgressSink sets the engine-wide progress sink. Individual uploads
// and downloads can override it per operation.
func WithProgressSink(sink replicatypes.ProgressSink) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.ProgressSink = sink
	}
}

// WithProgressChannel delivers progress snapshots to a channel. Sends
// never block: when the channel is full the snapshot is dropped, so a
// slow consumer only loses intermediate updates.
func WithProgressChannel(ch chan<- replicatypes.ProgressSnapshot) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		if ch == nil {
			return
		}
		c.ProgressSink = replicatypes.ProgressFunc(func(snapshot replicatypes.ProgressSnapshot) {
			select {
			case ch <- snapshot:
			default:
			}
		})
	}
}

// WithMetrics sets the telemetry recorder public operations report to.
// The metrics package provides a Prometheus-backed implementation.
func WithMetrics(recorder replicatypes.MetricsRecorder) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.Metrics = recorder
	}
}

// WithLogger sets the engine's logger. Without one the engine is silent.
func WithLogger(logger zerolog.Logger) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.Logger = &logger
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) replicatypes.Option {
	return func(c *replicatypes.EngineConfig) {
		c.Filesystem = filesystem
	}
}

// WithContentType sets the content type for upload operations, skipping
// detection.
func WithContentType(contentType string) replicatypes.UploadOption {
	return func(c *replicatypes.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithUploadQuorum overrides the engine's quorum for one upload.
func WithUploadQuorum(quorum int) replicatypes.UploadOption {
	return func(c *replicatypes.UploadOptionConfig) {
		if quorum > 0 {
			c.Quorum = quorum
		}
	}
}

// WithProgress sets a progress sink for one upload, overriding the
// engine-wide sink.
func WithProgress(sink replicatypes.ProgressSink) replicatypes.UploadOption {
	return func(c *replicatypes.UploadOptionConfig) {
		c.ProgressSink = sink
	}
}

// WithoutToken skips issuing an access token for one upload.
func WithoutToken() replicatypes.UploadOption {
	return func(c *replicatypes.UploadOptionConfig) {
		c.SkipToken = true
	}
}

// WithDownloadProgress sets a progress sink for one download, overriding
// the engine-wide sink.
func WithDownloadProgress(sink replicatypes.ProgressSink) replicatypes.DownloadOption {
	return func(c *replicatypes.DownloadOptionConfig) {
		c.ProgressSink = sink
	}
}
