package coordinator

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/rs/zerolog"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/planner"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/progress"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// abortTimeout bounds the abort call that runs after a backend's pipeline
// failed or the job was canceled.
const abortTimeout = 30 * time.Second

// Config carries the replication knobs the engine resolved from its own
// configuration.
type Config struct {
	// MinPartSize is the smallest allowed multipart part size
	MinPartSize int64

	// MaxPartSize caps the planned part size
	MaxPartSize int64

	// TargetPartCount is the preferred number of parts per upload
	TargetPartCount int

	// MultipartThreshold is the object size at which uploads switch from a
	// single put to a multipart upload
	MultipartThreshold int64

	// MaxConcurrent bounds how many backends replicate at once; zero or
	// negative means all at once
	MaxConcurrent int

	// CallTimeout bounds each individual backend call; zero means no bound
	CallTimeout time.Duration

	// Retry is the per-call retry policy
	Retry retry.Policy

	// Logger receives per-backend replication events
	Logger zerolog.Logger
}

// Params describes one replication run.
type Params struct {
	// Key is the storage key the object lands under on every backend
	Key string

	// SourcePath is the local file to replicate
	SourcePath string

	// Size is the source file's length in bytes
	Size int64

	// ContentType is stored with the object when non-empty
	ContentType string

	// Quorum is the number of committed backends required for success.
	// Values outside [1, len(Clients)] are clamped.
	Quorum int

	// Clients are the backends to replicate to
	Clients []backend.Client

	// PartLimits caps the part size per backend, keyed by client name.
	// Backends absent from the map, or present with a non-positive value,
	// use the configured MaxPartSize.
	PartLimits map[string]int64

	// Tracker receives progress updates when non-nil
	Tracker *progress.Tracker
}

// Result is the collected outcome of one replication run.
type Result struct {
	// Outcomes holds one entry per backend, in Params.Clients order
	Outcomes []replicatypes.BackendOutcome

	// Committed is the number of backends holding the complete object
	Committed int

	// Quorum is the effective quorum after clamping
	Quorum int

	// Success reports whether Committed reached Quorum
	Success bool

	// Degraded reports a success that left at least one backend without
	// the object
	Degraded bool
}

// Coordinator replicates local files across backends.
type Coordinator struct {
	fsys fs.Filesystem
	cfg  Config
}

// New creates a Coordinator reading source files from fsys.
func New(fsys fs.Filesystem, cfg Config) *Coordinator {
	return &Coordinator{fsys: fsys, cfg: cfg}
}

// Run replicates the source file to every backend concurrently and reports
// each backend's outcome. Run itself only fails on unusable parameters;
// backend failures are data, recorded in the result, so a partial success
// can still satisfy the quorum.
func (c *Coordinator) Run(ctx context.Context, p Params) (*Result, error) {
	if len(p.Clients) == 0 {
		return nil, replicaerrors.NewError("replicate", replicaerrors.ErrInvalidInput).
			WithMessage("no backends to replicate to")
	}
	if p.Size < 0 {
		return nil, replicaerrors.NewError("replicate", replicaerrors.ErrInvalidInput).
			WithMessage("size must not be negative")
	}

	parts, err := c.plan(p.Size, c.cfg.MaxPartSize)
	if err != nil {
		return nil, err
	}

	if p.Tracker != nil {
		for _, client := range p.Clients {
			p.Tracker.Register(client.Name(), p.Size)
		}
	}

	var sem chan struct{}
	if c.cfg.MaxConcurrent > 0 && c.cfg.MaxConcurrent < len(p.Clients) {
		sem = make(chan struct{}, c.cfg.MaxConcurrent)
	}

	outcomes := make([]replicatypes.BackendOutcome, len(p.Clients))
	var wg sync.WaitGroup
	for i, client := range p.Clients {
		wg.Add(1)
		go func(i int, client backend.Client) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					outcomes[i] = replicatypes.BackendOutcome{
						Backend: client.Name(),
						Status:  replicatypes.OutcomeFailed,
						Err:     ctx.Err(),
					}
					return
				}
			}
			outcomes[i] = c.replicate(ctx, client, p, parts)
		}(i, client)
	}
	wg.Wait()

	if p.Tracker != nil {
		p.Tracker.Finish()
	}

	committed := 0
	for _, o := range outcomes {
		if o.Status == replicatypes.OutcomeCommitted {
			committed++
		}
	}
	quorum := clampQuorum(p.Quorum, len(p.Clients))
	failed := len(outcomes) - committed

	return &Result{
		Outcomes:  outcomes,
		Committed: committed,
		Quorum:    quorum,
		Success:   committed >= quorum,
		Degraded:  committed >= quorum && failed > 0,
	}, nil
}

// plan produces the part list for an upload capped at maxPart, or nil when
// the object stays below the multipart threshold. A cap under the configured
// minimum lowers the floor with it so the bounds stay usable.
func (c *Coordinator) plan(size, maxPart int64) ([]planner.Part, error) {
	if c.cfg.MultipartThreshold <= 0 || size < c.cfg.MultipartThreshold {
		return nil, nil
	}
	minPart := c.cfg.MinPartSize
	if maxPart < minPart {
		minPart = maxPart
	}
	return planner.Plan(size, minPart, maxPart, c.cfg.TargetPartCount)
}

// replicate runs one backend's full pipeline and never panics the job; all
// failure detail lands in the returned outcome.
func (c *Coordinator) replicate(ctx context.Context, client backend.Client, p Params, parts []planner.Part) replicatypes.BackendOutcome {
	started := time.Now()

	// A backend whose part size cap sits under the shared maximum gets its
	// own tighter plan.
	if limit := p.PartLimits[client.Name()]; limit > 0 && limit < c.cfg.MaxPartSize {
		replanned, err := c.plan(p.Size, limit)
		if err != nil {
			c.cfg.Logger.Warn().
				Str("backend", client.Name()).
				Str("key", p.Key).
				Int64("part_size_limit", limit).
				Err(err).
				Msg("part planning for backend failed")
			return replicatypes.BackendOutcome{
				Backend:  client.Name(),
				Status:   replicatypes.OutcomeFailed,
				Err:      err,
				Duration: time.Since(started),
			}
		}
		parts = replanned
	}

	etag, err := c.store(ctx, client, p, parts)
	outcome := replicatypes.BackendOutcome{
		Backend:  client.Name(),
		Duration: time.Since(started),
	}
	if err != nil {
		outcome.Status = replicatypes.OutcomeFailed
		outcome.Err = err
		c.cfg.Logger.Warn().
			Str("backend", client.Name()).
			Str("key", p.Key).
			Err(err).
			Msg("replication to backend failed")
		return outcome
	}

	outcome.Status = replicatypes.OutcomeCommitted
	outcome.ETag = etag
	outcome.Bytes = p.Size
	if p.Tracker != nil {
		p.Tracker.Complete(client.Name())
	}
	c.cfg.Logger.Debug().
		Str("backend", client.Name()).
		Str("key", p.Key).
		Int64("bytes", p.Size).
		Dur("elapsed", outcome.Duration).
		Msg("replication to backend committed")
	return outcome
}

// store opens its own handle on the source file so backends never share a
// read cursor, then uploads either as a single put or as planned parts.
func (c *Coordinator) store(ctx context.Context, client backend.Client, p Params, parts []planner.Part) (string, error) {
	file, err := c.fsys.Open(p.SourcePath)
	if err != nil {
		return "", replicaerrors.NewObjectError("replicate", client.Name(), p.Key, err)
	}
	defer file.Close()

	if len(parts) == 0 {
		return c.putSingle(ctx, client, p, file)
	}
	return c.putMultipart(ctx, client, p, file, parts)
}

func (c *Coordinator) putSingle(ctx context.Context, client backend.Client, p Params, file fs.File) (string, error) {
	var etag string
	err := c.cfg.Retry.Do(ctx, func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()
		// A fresh section reader per attempt; a retried put must restart
		// from offset zero.
		body := io.NewSectionReader(file, 0, p.Size)
		var putErr error
		etag, putErr = client.Put(callCtx, p.Key, body, p.Size, p.ContentType)
		return putErr
	})
	if err != nil {
		return "", err
	}
	if p.Tracker != nil {
		p.Tracker.Update(client.Name(), p.Size)
	}
	return etag, nil
}

func (c *Coordinator) putMultipart(ctx context.Context, client backend.Client, p Params, file fs.File, parts []planner.Part) (string, error) {
	var uploadID string
	err := c.cfg.Retry.Do(ctx, func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()
		var initErr error
		uploadID, initErr = client.InitiateMultipart(callCtx, p.Key, p.ContentType)
		return initErr
	})
	if err != nil {
		return "", err
	}

	completed := make([]backend.CompletedPart, 0, len(parts))
	for _, part := range parts {
		etag, err := c.uploadPart(ctx, client, p, file, uploadID, part)
		if err != nil {
			c.abort(ctx, client, p.Key, uploadID)
			return "", err
		}
		completed = append(completed, backend.CompletedPart{Number: part.Number, ETag: etag})
		if p.Tracker != nil {
			p.Tracker.Update(client.Name(), part.Len())
		}
	}

	var finalETag string
	err = c.cfg.Retry.Do(ctx, func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()
		var completeErr error
		finalETag, completeErr = client.CompleteMultipart(callCtx, p.Key, uploadID, completed)
		return completeErr
	})
	if err != nil {
		c.abort(ctx, client, p.Key, uploadID)
		return "", err
	}
	return finalETag, nil
}

func (c *Coordinator) uploadPart(ctx context.Context, client backend.Client, p Params, file fs.File, uploadID string, part planner.Part) (string, error) {
	var etag string
	err := c.cfg.Retry.Do(ctx, func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()
		// Positioned reads; a retried part re-reads its own range only.
		body := io.NewSectionReader(file, part.Start, part.Len())
		var upErr error
		etag, upErr = client.UploadPart(callCtx, p.Key, uploadID, part.Number, body, part.Len())
		return upErr
	})
	return etag, err
}

// abort abandons a multipart upload so no orphaned parts accrue storage.
// It must run even when the job's context is already canceled, so it
// detaches from ctx and carries its own deadline.
func (c *Coordinator) abort(ctx context.Context, client backend.Client, key, uploadID string) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if err := client.AbortMultipart(abortCtx, key, uploadID); err != nil {
		c.cfg.Logger.Warn().
			Str("backend", client.Name()).
			Str("key", key).
			Str("upload_id", uploadID).
			Err(err).
			Msg("failed to abort multipart upload")
	}
}

func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

// clampQuorum forces q into [1, backends].
func clampQuorum(q, backends int) int {
	if q < 1 {
		return 1
	}
	if q > backends {
		return backends
	}
	return q
}
