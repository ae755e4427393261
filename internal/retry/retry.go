// Package retry provides bounded exponential backoff for single backend
// calls. Retrying never crosses a backend boundary: a call that exhausts
// its budget fails that backend's pipeline, and failing over to another
// backend is the caller's decision.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
)

// Defaults applied when a Policy field is zero.
const (
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3

	// DefaultInitialInterval is the first backoff delay
	DefaultInitialInterval = 500 * time.Millisecond

	// DefaultMaxInterval caps the growth of the backoff delay
	DefaultMaxInterval = 10 * time.Second
)

// Policy bounds the retry behavior for a single backend call.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// InitialInterval is the first backoff delay
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay
	MaxInterval time.Duration
}

// DefaultPolicy returns the standard backend call policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Do runs op, retrying transient failures with exponential backoff until
// the attempt budget is spent or ctx is done. Permanent failures return
// immediately. The total attempt count is MaxRetries+1.
func (p Policy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	// Attempts are bounded by count, not wall time.
	bo.MaxElapsedTime = 0

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx))
}

// IsPermanent classifies err for retry purposes. Input, permission,
// not-found and cancellation failures are permanent; network, timeout and
// throttle failures are transient. Unrecognized errors count as transient
// so the bounded retry gets a chance to clear them.
func IsPermanent(err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		return true
	case replicaerrors.IsObjectNotFound(err),
		replicaerrors.IsAccessDenied(err),
		replicaerrors.IsInvalidInput(err),
		errors.Is(err, replicaerrors.ErrInvalidRange),
		errors.Is(err, replicaerrors.ErrInvalidObjectName),
		errors.Is(err, replicaerrors.ErrObjectTooLarge):
		return true
	default:
		return false
	}
}
