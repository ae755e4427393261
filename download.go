// Package replica provides download and metadata read operations.
//
// Reads resolve through the failover chain: backends are tried in
// priority order and the first one that can serve the request wins. A
// backend failure mid-download removes the partial file before the next
// backend is tried, so destinations are only ever complete or absent.
package replica

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/progress"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/scratch"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// Download restores an object into a fresh scratch directory and returns
// its local path. The caller owns the file until it calls
// FetchResult.Remove, which deletes the file and its scratch directory.
//
// Returns:
//   - *FetchResult: the local path, serving backend and size
//   - error: validation errors, or an *errors.AllFailedError when no
//     backend could serve the object
//
// Example:
//
//	fetch, err := engine.Download(ctx, "alice", "report.pdf")
//	if err != nil {
//	    return err
//	}
//	defer fetch.Remove()
//	send(fetch.Path)
func (e *Engine) Download(
	ctx context.Context,
	owner, object string,
	opts ...replicatypes.DownloadOption,
) (*replicatypes.FetchResult, error) {
	if err := validateRead(owner, object); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	dir, err := scratch.New(e.fsys, e.cfg.ScratchRoot, jobID)
	if err != nil {
		return nil, err
	}

	result, err := e.fetch(ctx, jobID, owner, object, dir.Join(object), opts)
	if err != nil {
		if rmErr := dir.Remove(); rmErr != nil {
			e.logger.Warn().Err(rmErr).Str("path", dir.Path()).Msg("failed to clean up scratch directory")
		}
		return nil, err
	}

	result.Cleanup = dir.Remove
	return result, nil
}

// DownloadFile restores an object to a caller-chosen local path. The
// destination is created (or truncated); on failure no partial file
// survives.
//
// Returns:
//   - *FetchResult: the destination path, serving backend and size
//   - error: validation errors, or an *errors.AllFailedError when no
//     backend could serve the object
func (e *Engine) DownloadFile(
	ctx context.Context,
	owner, object, destPath string,
	opts ...replicatypes.DownloadOption,
) (*replicatypes.FetchResult, error) {
	if err := validateRead(owner, object); err != nil {
		return nil, err
	}
	if destPath == "" {
		return nil, replicaerrors.NewError("download", replicaerrors.ErrInvalidInput).
			WithObject(object).
			WithMessage("destination path cannot be empty")
	}

	return e.fetch(ctx, uuid.NewString(), owner, object, destPath, opts)
}

// fetch walks the failover chain, streaming the object to destPath
// through the ranged downloader.
func (e *Engine) fetch(
	ctx context.Context,
	jobID, owner, object, destPath string,
	opts []replicatypes.DownloadOption,
) (*replicatypes.FetchResult, error) {
	// Apply download options
	config := &replicatypes.DownloadOptionConfig{
		ProgressSink: e.cfg.ProgressSink,
	}
	for _, opt := range opts {
		opt(config)
	}

	key := objectKey(owner, object)
	start := time.Now()

	var size int64
	served, err := e.chain.Do(ctx, "download", object, func(ctx context.Context, client backend.Client) error {
		// Each attempt gets a fresh tracker so a retried backend starts its
		// accounting from zero.
		var fetchErr error
		size, fetchErr = e.fetcher.Fetch(ctx, client, key, destPath, progress.NewTracker(jobID, config.ProgressSink))
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	e.metrics.BytesDownloaded(size)
	e.logger.Info().
		Str("job_id", jobID).
		Str("key", key).
		Str("backend", served).
		Int64("size", size).
		Dur("duration", time.Since(start)).
		Msg("object downloaded")

	return &replicatypes.FetchResult{
		ObjectName: object,
		Backend:    served,
		Path:       destPath,
		Size:       size,
		Duration:   time.Since(start),
	}, nil
}

// Exists checks whether an object is stored on any backend.
//
// Returns:
//   - bool: true when some backend holds the object
//   - error: nil for definite answers; an error only when every backend
//     failed for reasons other than the object being absent
func (e *Engine) Exists(ctx context.Context, owner, object string) (bool, error) {
	if err := validateRead(owner, object); err != nil {
		return false, err
	}

	_, err := e.headAny(ctx, owner, object)
	if err != nil {
		if errors.Is(err, replicaerrors.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stat returns an object's metadata from the first backend that can
// report it.
//
// Errors:
//   - ErrObjectNotFound: no backend holds the object
func (e *Engine) Stat(ctx context.Context, owner, object string) (*replicatypes.ObjectInfo, error) {
	if err := validateRead(owner, object); err != nil {
		return nil, err
	}

	return e.headAny(ctx, owner, object)
}

// headAny heads the object through the failover chain. Each backend's
// probe is retried and time-bounded like any other backend call.
func (e *Engine) headAny(ctx context.Context, owner, object string) (*replicatypes.ObjectInfo, error) {
	key := objectKey(owner, object)

	var info *replicatypes.ObjectInfo
	_, err := e.chain.Do(ctx, "stat", object, func(ctx context.Context, client backend.Client) error {
		return e.call(ctx, func(callCtx context.Context) error {
			var headErr error
			info, headErr = client.Head(callCtx, key)
			return headErr
		})
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// validateRead checks the owner and object name every read operation
// takes.
func validateRead(owner, object string) error {
	if err := validation.ValidateOwner(owner); err != nil {
		return err
	}
	return validation.ValidateObjectName(object)
}
