// Package replica provides the replicated upload entry point.
package replica

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/coordinator"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/progress"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

const (
	// DefaultContentType is the content type stored when detection fails
	DefaultContentType = "application/octet-stream"
)

// Upload replicates a local file to every configured backend concurrently
// and reports each backend's outcome.
//
// The object name is sanitized before storage: path components and
// disallowed characters are stripped, and a name that sanitizes to nothing
// is rejected. The object lands under the owner's key namespace on every
// backend. Content type is sniffed from the file unless WithContentType
// overrides it.
//
// Backend failures are folded into the result, never raised: the call
// succeeds as long as the committed replica count reaches the quorum, and
// JobResult.Degraded marks a success that left some backend without the
// object. When the quorum is missed the result is still returned,
// alongside ErrQuorumNotMet.
//
// Returns:
//   - *JobResult: per-backend outcomes, the storage key and the access
//     token (when tokens are configured)
//   - error: validation errors, ErrQuorumNotMet on a failed job
//
// Errors:
//   - ErrInvalidInput: owner unusable, size not positive, or declared size
//     does not match the source file
//   - ErrInvalidObjectName: name empty or unusable after sanitation
//   - ErrObjectTooLarge: size exceeds the configured maximum
//   - ErrQuorumNotMet: fewer backends committed than the quorum requires
//
// Example:
//
//	result, err := engine.Upload(ctx, replicatypes.TransferJob{
//	    ObjectName: "song.mp3",
//	    SourcePath: "/uploads/song.mp3",
//	    Size:       size,
//	    Owner:      "alice",
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("stored %s on %d backends\n", result.Key, result.Committed())
func (e *Engine) Upload(
	ctx context.Context,
	job replicatypes.TransferJob,
	opts ...replicatypes.UploadOption,
) (*replicatypes.JobResult, error) {
	if err := validation.ValidateOwner(job.Owner); err != nil {
		return nil, err
	}
	name := validation.SanitizeObjectName(job.ObjectName)
	if err := validation.ValidateObjectName(name); err != nil {
		return nil, err
	}
	if job.Size <= 0 {
		return nil, replicaerrors.NewError("upload", replicaerrors.ErrInvalidInput).
			WithObject(name).
			WithMessage("size must be positive")
	}
	if job.Size > e.cfg.MaxObjectSize {
		return nil, replicaerrors.NewError("upload", replicaerrors.ErrObjectTooLarge).
			WithObject(name).
			WithMessage(fmt.Sprintf("%s exceeds the %s limit",
				replicatypes.FormatBytes(job.Size), replicatypes.FormatBytes(e.cfg.MaxObjectSize)))
	}

	// The declared size is a contract: the coordinator plans parts from it,
	// so a mismatched source file must be rejected up front.
	info, err := e.fsys.Stat(job.SourcePath)
	if err != nil {
		return nil, replicaerrors.NewError("upload", err).WithObject(name)
	}
	if info.IsDir() {
		return nil, replicaerrors.NewError("upload", replicaerrors.ErrInvalidInput).
			WithObject(name).
			WithMessage("source path points to a directory, not a file")
	}
	if info.Size() != job.Size {
		return nil, replicaerrors.NewError("upload", replicaerrors.ErrInvalidInput).
			WithObject(name).
			WithMessage(fmt.Sprintf("declared size %d does not match source file size %d",
				job.Size, info.Size()))
	}

	// Apply upload options
	config := &replicatypes.UploadOptionConfig{
		Quorum:       e.cfg.Quorum,
		ProgressSink: e.cfg.ProgressSink,
	}
	for _, opt := range opts {
		opt(config)
	}

	contentType := config.ContentType
	if contentType == "" {
		contentType = e.detectContentType(job.SourcePath)
	} else if err := validation.ValidateContentType(contentType); err != nil {
		return nil, err
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	jobID := uuid.NewString()
	key := objectKey(job.Owner, name)

	e.logger.Debug().
		Str("job_id", jobID).
		Str("key", key).
		Int64("size", job.Size).
		Time("created_at", job.CreatedAt).
		Msg("upload accepted")

	start := time.Now()
	e.metrics.JobStarted()

	res, err := e.coord.Run(ctx, coordinator.Params{
		Key:         key,
		SourcePath:  job.SourcePath,
		Size:        job.Size,
		ContentType: contentType,
		Quorum:      config.Quorum,
		Clients:     e.clients,
		PartLimits:  e.partLimits,
		Tracker:     progress.NewTracker(jobID, config.ProgressSink),
	})
	if err != nil {
		e.metrics.JobFinished(replicatypes.JobFailed, time.Since(start))
		return nil, err
	}

	duration := time.Since(start)
	result := &replicatypes.JobResult{
		ID:         jobID,
		ObjectName: name,
		Owner:      job.Owner,
		Key:        key,
		Success:    res.Success,
		Degraded:   res.Degraded,
		Backends:   res.Outcomes,
		Size:       job.Size,
		Duration:   duration,
	}

	var pushed int64
	for _, outcome := range res.Outcomes {
		pushed += outcome.Bytes
		if outcome.Status == replicatypes.OutcomeFailed {
			e.metrics.BackendFailure(outcome.Backend)
		}
	}
	e.metrics.BytesUploaded(pushed)

	if !res.Success {
		e.metrics.JobFinished(replicatypes.JobFailed, duration)
		e.logger.Warn().
			Str("job_id", jobID).
			Str("key", key).
			Int("committed", res.Committed).
			Int("quorum", res.Quorum).
			Msg("replication quorum not met")
		return result, replicaerrors.NewError("upload", replicaerrors.ErrQuorumNotMet).
			WithObject(name).
			WithMessage(fmt.Sprintf("%d of %d required backends committed", res.Committed, res.Quorum))
	}

	if e.issuer != nil && !config.SkipToken {
		tok, err := e.issuer.Issue(job.Owner, name)
		if err != nil {
			// The object is stored; a token problem must not fail the job.
			e.logger.Warn().Err(err).Str("key", key).Msg("failed to issue access token")
		} else {
			result.Token = tok
		}
	}

	label := replicatypes.JobCommitted
	if res.Degraded {
		label = replicatypes.JobDegraded
	}
	e.metrics.JobFinished(label, duration)

	e.logger.Info().
		Str("job_id", jobID).
		Str("key", key).
		Int("committed", res.Committed).
		Int("quorum", res.Quorum).
		Bool("degraded", res.Degraded).
		Dur("duration", duration).
		Msg("object replicated")

	return result, nil
}

// detectContentType determines the content type using mimetype where
// possible, falling back to extension-based lookup when the file cannot
// be read.
func (e *Engine) detectContentType(path string) string {
	info, err := e.fsys.Stat(path)
	if err != nil || info.IsDir() {
		return contentTypeFromExtension(path)
	}

	file, err := e.fsys.Open(path)
	if err != nil {
		return contentTypeFromExtension(path)
	}
	defer file.Close()

	// Read first 512 bytes for content detection
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	return contentTypeFromExtension(path)
}

// contentTypeFromExtension detects content type from the file extension.
func contentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}

	return DefaultContentType
}
