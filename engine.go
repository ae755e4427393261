// Package replica provides engine initialization and configuration.
//
// The Engine is the facade over replication: it owns one backend client
// per configured target, the transfer coordinator, the failover chain,
// and the supporting token issuer and rate limiter.
package replica

import (
	"context"
	"sort"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/rs/zerolog"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	s3backend "github.com/input-output-hk/catalyst-forge-libs/replica/backend/s3"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/coordinator"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/downloader"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/failover"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/replica/ratelimit"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
	"github.com/input-output-hk/catalyst-forge-libs/replica/token"
)

// Defaults applied by New when the corresponding option is not given.
const (
	// DefaultMinPartSize is the smallest multipart part size (5 MiB)
	DefaultMinPartSize = 5 * 1024 * 1024

	// DefaultMaxPartSize caps the planned part size (8 MiB)
	DefaultMaxPartSize = 8 * 1024 * 1024

	// DefaultTargetPartCount is the preferred part count per upload
	DefaultTargetPartCount = 50

	// DefaultMultipartThreshold is the size at which uploads switch to
	// multipart (100 MiB)
	DefaultMultipartThreshold = 100 * 1024 * 1024

	// DefaultDownloadChunkSize is the ranged-read chunk size (8 MiB)
	DefaultDownloadChunkSize = 8 * 1024 * 1024

	// DefaultMaxObjectSize is the largest accepted object (2 GiB)
	DefaultMaxObjectSize = 2 * 1024 * 1024 * 1024

	// DefaultQuorum is the committed-replica count required for success
	DefaultQuorum = 1

	// DefaultRateLimit is the admission limit per identity per period
	DefaultRateLimit = 10

	// DefaultRatePeriod is the admission window length
	DefaultRatePeriod = time.Minute

	// DefaultTokenTTL is the access-token lifetime
	DefaultTokenTTL = time.Hour

	// DefaultShareTTL is the share-link lifetime (7 days)
	DefaultShareTTL = 7 * 24 * time.Hour

	// DefaultCallTimeout bounds each individual backend call
	DefaultCallTimeout = 2 * time.Minute

	// DefaultMaxRetries is the retry count for transient backend errors
	DefaultMaxRetries = 3
)

// Engine replicates objects across a fixed set of storage backends.
// It is safe for concurrent use; all configuration is fixed at
// construction.
type Engine struct {
	// cfg holds the resolved configuration
	cfg replicatypes.EngineConfig

	// fsys is the filesystem abstraction for local file operations
	fsys fs.Filesystem

	// logger is the engine's root logger
	logger zerolog.Logger

	// clients holds one backend client per target, in priority order
	clients []backend.Client

	// partLimits holds per-backend part size caps, keyed by target name;
	// only targets with a positive PartSizeLimit appear
	partLimits map[string]int64

	// chain walks clients in priority order for read operations
	chain *failover.Chain

	// coord replicates local files across the backends
	coord *coordinator.Coordinator

	// fetcher performs ranged downloads from a single backend
	fetcher *downloader.Fetcher

	// issuer mints access tokens; nil when no secret is configured
	issuer *token.Issuer

	// gate is the per-identity admission limiter; nil when disabled
	gate *ratelimit.Limiter

	// metrics receives operation telemetry; never nil
	metrics replicatypes.MetricsRecorder

	// policy is the per-call retry policy shared by every backend call
	policy retry.Policy
}

// New creates an Engine with the provided options, opening one S3 backend
// client per configured target.
//
// At least one target is required. Targets are validated and sorted by
// priority; duplicate target names are rejected.
//
// Example:
//
//	engine, err := replica.New(
//	    replica.WithTargets(primary, mirror),
//	    replica.WithQuorum(2),
//	    replica.WithTokenSecret(secret),
//	)
func New(opts ...replicatypes.Option) (*Engine, error) {
	return NewWithOpener(func(ctx context.Context, target replicatypes.Target) (backend.Client, error) {
		return s3backend.New(ctx, target)
	}, opts...)
}

// NewWithOpener creates an Engine whose backend clients come from opener.
// This is primarily used for testing with mocked backends.
func NewWithOpener(opener backend.Opener, opts ...replicatypes.Option) (*Engine, error) {
	if opener == nil {
		return nil, replicaerrors.NewError("engine", replicaerrors.ErrInvalidInput).
			WithMessage("opener cannot be nil")
	}

	// Apply functional options over the defaults.
	cfg := replicatypes.EngineConfig{
		Quorum:             DefaultQuorum,
		MinPartSize:        DefaultMinPartSize,
		MaxPartSize:        DefaultMaxPartSize,
		TargetPartCount:    DefaultTargetPartCount,
		MultipartThreshold: DefaultMultipartThreshold,
		DownloadChunkSize:  DefaultDownloadChunkSize,
		MaxObjectSize:      DefaultMaxObjectSize,
		CallTimeout:        DefaultCallTimeout,
		MaxRetries:         DefaultMaxRetries,
		TokenTTL:           DefaultTokenTTL,
		ShareTTL:           DefaultShareTTL,
		RateLimit:          DefaultRateLimit,
		RatePeriod:         DefaultRatePeriod,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateTargets(cfg.Targets); err != nil {
		return nil, err
	}

	// Sort by priority once; every read walks this order.
	targets := make([]replicatypes.Target, len(cfg.Targets))
	copy(targets, cfg.Targets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})
	cfg.Targets = targets

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	// Initialize filesystem - use provided one or default to OS filesystem
	filesystem := cfg.Filesystem
	if filesystem == nil {
		filesystem = billy.NewOSFS("/")
	}

	clients := make([]backend.Client, 0, len(targets))
	var partLimits map[string]int64
	for _, target := range targets {
		client, err := opener(context.Background(), target)
		if err != nil {
			return nil, replicaerrors.NewBackendError("engine", target.Name, err).
				WithMessage("failed to open backend")
		}
		clients = append(clients, client)
		if target.PartSizeLimit > 0 {
			if partLimits == nil {
				partLimits = make(map[string]int64)
			}
			partLimits[target.Name] = target.PartSizeLimit
		}
	}

	policy := retry.Policy{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: retry.DefaultInitialInterval,
		MaxInterval:     retry.DefaultMaxInterval,
	}

	e := &Engine{
		cfg:        cfg,
		fsys:       filesystem,
		logger:     logger,
		clients:    clients,
		partLimits: partLimits,
		chain:      failover.New(clients, logger.With().Str("component", "failover").Logger()),
		coord: coordinator.New(filesystem, coordinator.Config{
			MinPartSize:        cfg.MinPartSize,
			MaxPartSize:        cfg.MaxPartSize,
			TargetPartCount:    cfg.TargetPartCount,
			MultipartThreshold: cfg.MultipartThreshold,
			MaxConcurrent:      cfg.BackendConcurrency,
			CallTimeout:        cfg.CallTimeout,
			Retry:              policy,
			Logger:             logger.With().Str("component", "coordinator").Logger(),
		}),
		fetcher: downloader.New(filesystem, cfg.DownloadChunkSize, policy, cfg.CallTimeout,
			logger.With().Str("component", "downloader").Logger()),
		metrics: cfg.Metrics,
		policy:  policy,
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	e.chain.OnFailure = e.metrics.BackendFailure

	if len(cfg.TokenSecret) > 0 {
		issuer, err := token.NewIssuer(cfg.TokenSecret, token.WithTTL(cfg.TokenTTL))
		if err != nil {
			return nil, err
		}
		e.issuer = issuer
	}

	if cfg.RateLimit > 0 {
		e.gate = ratelimit.New(cfg.RateLimit, cfg.RatePeriod)
	}

	return e, nil
}

// validateTargets checks the target list New was configured with.
func validateTargets(targets []replicatypes.Target) error {
	if len(targets) == 0 {
		return replicaerrors.NewError("engine", replicaerrors.ErrInvalidInput).
			WithMessage("at least one target is required")
	}

	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if err := validation.ValidateTarget(target); err != nil {
			return err
		}
		if seen[target.Name] {
			return replicaerrors.NewBackendError("engine", target.Name, replicaerrors.ErrInvalidTarget).
				WithMessage("duplicate target name")
		}
		seen[target.Name] = true
	}

	return nil
}

// Allow reports whether identity may start another operation right now.
// It is the admission gate a front-end calls before Upload or Download;
// the engine itself never rejects on rate. Always true when rate limiting
// is disabled.
func (e *Engine) Allow(identity string) bool {
	if e.gate == nil {
		return true
	}
	return e.gate.Allow(identity)
}

// RetryAfter reports how long identity must wait before Allow can succeed
// again. Zero means no wait.
func (e *Engine) RetryAfter(identity string) time.Duration {
	if e.gate == nil {
		return 0
	}
	return e.gate.RetryAfter(identity)
}

// IssueToken mints an access token binding identity to object for the
// configured token lifetime.
//
// Returns:
//   - string: the signed token
//   - error: ErrInvalidInput when tokens are not configured or a field is
//     unusable
func (e *Engine) IssueToken(identity, object string) (string, error) {
	if e.issuer == nil {
		return "", replicaerrors.NewError("token", replicaerrors.ErrInvalidInput).
			WithMessage("no token secret configured")
	}
	return e.issuer.Issue(identity, object)
}

// VerifyToken checks an access token. The boolean is false for every
// invalid token, including when tokens are not configured.
func (e *Engine) VerifyToken(tok string) (token.Claims, bool) {
	if e.issuer == nil {
		return token.Claims{}, false
	}
	return e.issuer.Verify(tok)
}

// Close releases any resources held by the engine.
// Currently a no-op but included for future extensibility.
func (e *Engine) Close() error {
	return nil
}

// callContext bounds one backend call with the configured per-call
// timeout. The returned cancel func is always safe to call.
func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.CallTimeout)
}

// call runs one backend call under the retry policy and the per-call
// timeout.
func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	return e.policy.Do(ctx, func() error {
		callCtx, cancel := e.callContext(ctx)
		defer cancel()
		return fn(callCtx)
	})
}

// objectKey maps an owner and object name onto the storage key every
// backend stores the object under.
func objectKey(owner, object string) string {
	return "user_" + owner + "/" + object
}

// ownerPrefix is the common key prefix of everything owner has stored.
func ownerPrefix(owner string) string {
	return "user_" + owner + "/"
}

// noopMetrics discards all telemetry.
type noopMetrics struct{}

func (noopMetrics) JobStarted()                       {}
func (noopMetrics) JobFinished(string, time.Duration) {}
func (noopMetrics) BytesUploaded(int64)               {}
func (noopMetrics) BytesDownloaded(int64)             {}
func (noopMetrics) BackendFailure(string)             {}
