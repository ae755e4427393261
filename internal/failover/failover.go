package failover

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
)

// Chain tries backends in the order they were given. The engine hands the
// chain its clients already sorted by target priority.
type Chain struct {
	clients []backend.Client
	logger  zerolog.Logger

	// OnFailure, when set, is called with the backend name after each
	// failed attempt, whether or not a later backend serves the request.
	OnFailure func(backend string)
}

// New creates a Chain over the given clients.
func New(clients []backend.Client, logger zerolog.Logger) *Chain {
	return &Chain{clients: clients, logger: logger}
}

// Clients returns the chain's backends in attempt order.
func (c *Chain) Clients() []backend.Client {
	return c.clients
}

// Do runs fn against each backend in order until one succeeds, returning
// the name of the backend that served the request. When every backend
// fails, the returned error is an *errors.AllFailedError carrying each
// attempt. Cancellation of ctx stops the walk and surfaces as the context's
// error rather than a chain failure.
func (c *Chain) Do(ctx context.Context, op, object string, fn func(context.Context, backend.Client) error) (string, error) {
	attempts := make([]replicaerrors.BackendAttempt, 0, len(c.clients))
	for _, client := range c.clients {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err := fn(ctx, client)
		if err == nil {
			return client.Name(), nil
		}
		// Only the parent context marks the job itself as dead; a timed-out
		// attempt on one backend still lets the next backend try.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		c.logger.Warn().
			Str("backend", client.Name()).
			Str("object", object).
			Err(err).
			Msg("backend attempt failed, trying next")
		if c.OnFailure != nil {
			c.OnFailure(client.Name())
		}
		attempts = append(attempts, replicaerrors.BackendAttempt{Backend: client.Name(), Err: err})
	}
	return "", &replicaerrors.AllFailedError{Op: op, Object: object, Attempts: attempts}
}
