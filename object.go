// Package replica provides object management operations.
package replica

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// List returns the objects stored under an owner, with keys reduced to
// the logical object names the owner uploaded them as. The listing comes
// from the first backend that can serve it.
//
// Returns:
//   - *ListResult: the objects and the backend that served the listing
//   - error: validation errors, or an *errors.AllFailedError when no
//     backend could list
func (e *Engine) List(ctx context.Context, owner string) (*replicatypes.ListResult, error) {
	if err := validation.ValidateOwner(owner); err != nil {
		return nil, err
	}

	prefix := ownerPrefix(owner)
	start := time.Now()

	var objects []replicatypes.ObjectInfo
	served, err := e.chain.Do(ctx, "list", prefix, func(ctx context.Context, client backend.Client) error {
		return e.call(ctx, func(callCtx context.Context) error {
			var listErr error
			objects, listErr = client.List(callCtx, prefix)
			return listErr
		})
	})
	if err != nil {
		return nil, err
	}

	for i := range objects {
		objects[i].Key = strings.TrimPrefix(objects[i].Key, prefix)
	}

	return &replicatypes.ListResult{
		Objects:  objects,
		Backend:  served,
		Duration: time.Since(start),
	}, nil
}

// Delete removes an object from every backend concurrently. Backends
// that no longer hold the object count as deleted, so Delete is
// idempotent.
//
// Returns:
//   - error: nil when every replica is gone; an aggregate of the
//     per-backend failures otherwise
func (e *Engine) Delete(ctx context.Context, owner, object string) error {
	if err := validateRead(owner, object); err != nil {
		return err
	}

	key := objectKey(owner, object)
	failures := e.fanOut(ctx, func(ctx context.Context, client backend.Client) error {
		return e.call(ctx, func(callCtx context.Context) error {
			return client.Delete(callCtx, key)
		})
	})
	if len(failures) > 0 {
		return replicaerrors.NewError("delete", errors.Join(failures...)).WithObject(object)
	}

	e.logger.Info().Str("key", key).Msg("object deleted from all backends")
	return nil
}

// Rename gives a stored object a new name on every backend, using a
// server-side copy followed by a delete of the old key. The new name is
// sanitized the same way Upload sanitizes object names.
//
// A backend where the copy fails keeps the object under its old name; a
// backend where only the delete fails holds it under both. Either case
// surfaces in the aggregate error.
//
// Returns:
//   - string: the stored new name after sanitation
//   - error: validation errors, or an aggregate of per-backend failures
func (e *Engine) Rename(ctx context.Context, owner, oldName, newName string) (string, error) {
	if err := validateRead(owner, oldName); err != nil {
		return "", err
	}
	name := validation.SanitizeObjectName(newName)
	if err := validation.ValidateObjectName(name); err != nil {
		return "", err
	}
	if name == oldName {
		return "", replicaerrors.NewError("rename", replicaerrors.ErrInvalidInput).
			WithObject(oldName).
			WithMessage("cannot rename object to itself")
	}

	oldKey := objectKey(owner, oldName)
	newKey := objectKey(owner, name)

	failures := e.fanOut(ctx, func(ctx context.Context, client backend.Client) error {
		if err := e.call(ctx, func(callCtx context.Context) error {
			return client.Copy(callCtx, oldKey, newKey)
		}); err != nil {
			return err
		}
		return e.call(ctx, func(callCtx context.Context) error {
			return client.Delete(callCtx, oldKey)
		})
	})
	if len(failures) > 0 {
		return name, replicaerrors.NewError("rename", errors.Join(failures...)).WithObject(oldName)
	}

	e.logger.Info().Str("old_key", oldKey).Str("new_key", newKey).Msg("object renamed on all backends")
	return name, nil
}

// ShareLink returns a presigned download URL for an object, valid for
// ttl. A non-positive ttl uses the engine's configured share lifetime.
// The link comes from the first backend that actually holds the object,
// so it never points at a replica that was lost.
//
// Returns:
//   - string: the presigned URL
//   - error: validation errors, or an *errors.AllFailedError when no
//     backend holds the object
func (e *Engine) ShareLink(ctx context.Context, owner, object string, ttl time.Duration) (string, error) {
	if err := validateRead(owner, object); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = e.cfg.ShareTTL
	}

	key := objectKey(owner, object)

	var url string
	served, err := e.chain.Do(ctx, "share", object, func(ctx context.Context, client backend.Client) error {
		// Presigning is local signing and succeeds whether or not the
		// backend holds the object, so probe first: a link must point at a
		// replica that exists.
		if err := e.call(ctx, func(callCtx context.Context) error {
			_, headErr := client.Head(callCtx, key)
			return headErr
		}); err != nil {
			return err
		}
		return e.call(ctx, func(callCtx context.Context) error {
			var signErr error
			url, signErr = client.PresignGet(callCtx, key, ttl)
			return signErr
		})
	})
	if err != nil {
		return "", err
	}

	e.logger.Debug().Str("key", key).Str("backend", served).Dur("ttl", ttl).Msg("share link issued")
	return url, nil
}

// fanOut runs fn against every backend concurrently and returns the
// failures, each annotated with its backend. Failed backends are also
// reported to the metrics recorder.
func (e *Engine) fanOut(ctx context.Context, fn func(context.Context, backend.Client) error) []error {
	errs := make([]error, len(e.clients))

	var wg sync.WaitGroup
	for i, client := range e.clients {
		wg.Add(1)
		go func(i int, client backend.Client) {
			defer wg.Done()
			errs[i] = fn(ctx, client)
		}(i, client)
	}
	wg.Wait()

	var failures []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := e.clients[i].Name()
		e.metrics.BackendFailure(name)
		e.logger.Warn().Str("backend", name).Err(err).Msg("backend operation failed")
		failures = append(failures, err)
	}
	return failures
}
