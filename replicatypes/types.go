// Package replicatypes provides shared type definitions for the replica engine.
package replicatypes

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/rs/zerolog"
)

// OutcomeStatus represents the final state of one backend's part of a job.
type OutcomeStatus string

// Predefined backend outcome states
const (
	// OutcomeCommitted means the backend holds a complete copy of the object
	OutcomeCommitted OutcomeStatus = "committed"

	// OutcomeFailed means the backend's upload was aborted and no object remains
	OutcomeFailed OutcomeStatus = "failed"
)

// TransferJob describes one object to be replicated across backends.
// Jobs are value types owned by the engine for the duration of a call;
// they are never persisted.
type TransferJob struct {
	// ObjectName is the caller-visible name of the object
	ObjectName string

	// SourcePath is the local path of the file to upload
	SourcePath string

	// Size is the declared total size in bytes; it must match the source file
	Size int64

	// Owner is the identity the object is stored under
	Owner string

	// CreatedAt is when the job was accepted; filled by the engine when zero
	CreatedAt time.Time
}

// Target describes one storage backend. Targets are fixed at engine
// construction and never change for the engine's lifetime.
type Target struct {
	// Name uniquely identifies the backend in results and logs
	Name string

	// Endpoint is the service URL (empty for the provider default)
	Endpoint string

	// Region is the backend region
	Region string

	// Bucket is the bucket all objects are stored in
	Bucket string

	// AccessKeyID and SecretAccessKey are the static credentials for this backend
	AccessKeyID     string
	SecretAccessKey string

	// Priority orders backends for reads; lower is preferred
	Priority int

	// PathStyle forces path-style addressing (needed by some S3-compatible stores)
	PathStyle bool

	// PartSizeLimit caps the part size used for this backend (0 = engine default)
	PartSizeLimit int64

	// RequestsPerSecond paces calls to this backend (0 = unpaced)
	RequestsPerSecond float64
}

// ObjectInfo describes a stored object as reported by a backend.
type ObjectInfo struct {
	// Key is the full storage key
	Key string

	// Size is the object size in bytes
	Size int64

	// ETag is the backend's entity tag for the object
	ETag string

	// LastModified is when the object was last written
	LastModified time.Time

	// ContentType is the stored MIME type, when the backend reports one
	ContentType string
}

// BackendOutcome records how one backend fared during a replicated job.
type BackendOutcome struct {
	// Backend is the target name
	Backend string

	// Status is the backend's final state for this job
	Status OutcomeStatus

	// ETag is the committed object's entity tag (empty on failure)
	ETag string

	// Bytes is the number of bytes transferred to this backend
	Bytes int64

	// Duration is how long this backend's pipeline ran
	Duration time.Duration

	// Err is the error that failed the pipeline (nil when committed)
	Err error
}

// JobResult contains the result of a replicated upload.
type JobResult struct {
	// ID is the engine-assigned job identifier
	ID string

	// ObjectName is the caller-visible name of the stored object
	ObjectName string

	// Owner is the identity the object was stored under
	Owner string

	// Key is the storage key the object was written to
	Key string

	// Success reports whether the committed replica count met the quorum
	Success bool

	// Degraded is true when the job succeeded but at least one backend failed
	Degraded bool

	// Backends holds one outcome per configured backend, in priority order
	Backends []BackendOutcome

	// Size is the object size in bytes
	Size int64

	// Duration is how long the whole job took
	Duration time.Duration

	// Token is the access token issued for the stored object, when enabled
	Token string
}

// Committed returns the number of backends holding a complete copy.
func (r *JobResult) Committed() int {
	n := 0
	for _, b := range r.Backends {
		if b.Status == OutcomeCommitted {
			n++
		}
	}
	return n
}

// FetchResult contains the result of a download operation.
type FetchResult struct {
	// ObjectName is the caller-visible name of the object
	ObjectName string

	// Backend is the target that served the download
	Backend string

	// Path is the local path of the downloaded file
	Path string

	// Size is the downloaded size in bytes
	Size int64

	// Duration is how long the download took
	Duration time.Duration

	// Cleanup removes the downloaded file and its scratch directory.
	// The engine sets it when it chose the destination; it is nil when
	// the caller supplied the path.
	Cleanup func() error
}

// Remove deletes the downloaded file when the engine owns its location.
// It is a no-op for caller-supplied destinations.
func (r *FetchResult) Remove() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// ListResult contains the result of listing an owner's objects.
type ListResult struct {
	// Objects contains the listed objects with owner-relative keys
	Objects []ObjectInfo

	// Backend is the target that served the listing
	Backend string

	// Duration is how long the operation took
	Duration time.Duration
}

// ProgressSnapshot is an immutable view of transfer progress. Snapshots
// with an empty Backend aggregate the whole job.
type ProgressSnapshot struct {
	// JobID identifies the job the snapshot belongs to
	JobID string

	// Backend is the target the snapshot covers ("" = whole job)
	Backend string

	// BytesTransferred is the byte count so far
	BytesTransferred int64

	// TotalBytes is the expected total for this stream
	TotalBytes int64

	// Percent is the completion percentage (0 when the total is unknown)
	Percent float64

	// Speed is the smoothed transfer rate in bytes per second
	Speed float64

	// ETA is the estimated remaining time; negative when unknown
	ETA time.Duration

	// Elapsed is the time since the stream started
	Elapsed time.Duration

	// Done marks the final snapshot for the stream
	Done bool
}

// ProgressSink receives progress snapshots. Implementations own any side
// effects; the engine never blocks on a sink and publishes outside its
// internal locks.
type ProgressSink interface {
	// Publish delivers one snapshot. It must not block.
	Publish(snapshot ProgressSnapshot)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(ProgressSnapshot)

// Publish calls f(snapshot).
func (f ProgressFunc) Publish(snapshot ProgressSnapshot) { f(snapshot) }

// Job result labels passed to MetricsRecorder.JobFinished.
const (
	// JobCommitted labels a job every tried backend committed
	JobCommitted = "committed"

	// JobDegraded labels a quorum success with at least one failed backend
	JobDegraded = "degraded"

	// JobFailed labels a job that missed its quorum
	JobFailed = "failed"
)

// MetricsRecorder receives operation telemetry from the engine. The
// metrics package provides a Prometheus-backed implementation.
type MetricsRecorder interface {
	// JobStarted marks a job as active
	JobStarted()

	// JobFinished records a finished job with its result label and duration
	JobFinished(result string, duration time.Duration)

	// BytesUploaded adds to the uploaded byte counter
	BytesUploaded(n int64)

	// BytesDownloaded adds to the downloaded byte counter
	BytesDownloaded(n int64)

	// BackendFailure counts a failed backend pipeline or read attempt
	BackendFailure(backend string)
}

// Configuration types for functional options

// EngineConfig holds configuration for the transfer engine.
type EngineConfig struct {
	Targets            []Target
	Quorum             int
	MinPartSize        int64
	MaxPartSize        int64
	TargetPartCount    int
	MultipartThreshold int64
	DownloadChunkSize  int64
	MaxObjectSize      int64
	BackendConcurrency int
	CallTimeout        time.Duration
	MaxRetries         int
	TokenSecret        []byte
	TokenTTL           time.Duration
	ShareTTL           time.Duration
	RateLimit          int
	RatePeriod         time.Duration
	ScratchRoot        string
	ProgressSink       ProgressSink
	Metrics            MetricsRecorder
	Logger             *zerolog.Logger
	Filesystem         fs.Filesystem // Filesystem abstraction for file operations
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType  string
	Quorum       int
	ProgressSink ProgressSink
	SkipToken    bool
}

// DownloadOptionConfig holds configuration for download operations via functional options.
type DownloadOptionConfig struct {
	ProgressSink ProgressSink
}

// Option is a functional option for configuring the transfer engine.
type (
	Option func(*EngineConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// DownloadOption is a functional option for configuring download operations.
	DownloadOption func(*DownloadOptionConfig)
)
