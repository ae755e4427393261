package downloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/rs/zerolog"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/progress"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// Fetcher restores objects from a backend onto the local filesystem.
type Fetcher struct {
	fsys    fs.Filesystem
	chunks  *pool.ChunkPool
	policy  retry.Policy
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a Fetcher that reads chunkSize bytes per ranged request.
// callTimeout bounds each individual backend call; zero means no bound.
func New(fsys fs.Filesystem, chunkSize int64, policy retry.Policy, callTimeout time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		fsys:    fsys,
		chunks:  pool.NewChunkPool(int(chunkSize)),
		policy:  policy,
		timeout: callTimeout,
		logger:  logger,
	}
}

// Fetch downloads the object at key from client into destPath. The object
// size is probed first so the ranged reads and the progress total line up.
// A zero-length object produces an empty destination file.
//
// Returns:
//   - int64: the number of bytes written to destPath
//   - error: the first failure left standing after retries
func (f *Fetcher) Fetch(ctx context.Context, client backend.Client, key, destPath string, tracker *progress.Tracker) (int64, error) {
	var info *replicatypes.ObjectInfo
	err := f.policy.Do(ctx, func() error {
		callCtx, cancel := f.callContext(ctx)
		defer cancel()
		var headErr error
		info, headErr = client.Head(callCtx, key)
		return headErr
	})
	if err != nil {
		return 0, err
	}

	if tracker != nil {
		tracker.Register(client.Name(), info.Size)
	}

	file, err := f.fsys.Create(destPath)
	if err != nil {
		return 0, replicaerrors.NewObjectError("fetch", client.Name(), key, err)
	}

	written, err := f.copyChunks(ctx, client, key, file, info.Size, tracker)
	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = replicaerrors.NewObjectError("fetch", client.Name(), key, closeErr)
	}
	if err != nil {
		// Never leave a truncated file behind.
		_ = f.fsys.Remove(destPath)
		return 0, err
	}

	if tracker != nil {
		tracker.Complete(client.Name())
	}
	f.logger.Debug().
		Str("backend", client.Name()).
		Str("key", key).
		Int64("bytes", written).
		Msg("object fetched")
	return written, nil
}

// copyChunks walks the object range by range, reporting each landed chunk
// to the tracker.
func (f *Fetcher) copyChunks(ctx context.Context, client backend.Client, key string, file fs.File, size int64, tracker *progress.Tracker) (int64, error) {
	chunkSize := int64(f.chunks.Size())
	buf := f.chunks.Get()
	defer f.chunks.Put(buf)

	var written int64
	for offset := int64(0); offset < size; offset += chunkSize {
		end := offset + chunkSize - 1
		if end >= size {
			end = size - 1
		}

		n, err := f.copyChunk(ctx, client, key, file, offset, end, buf)
		if err != nil {
			return written, err
		}
		written += n
		if tracker != nil {
			tracker.Update(client.Name(), n)
		}
	}
	return written, nil
}

// copyChunk lands one inclusive byte range. The file is rewound to the
// chunk start before every attempt so a half-copied attempt cannot
// duplicate bytes.
func (f *Fetcher) copyChunk(ctx context.Context, client backend.Client, key string, file fs.File, start, end int64, buf []byte) (int64, error) {
	want := end - start + 1
	var n int64
	err := f.policy.Do(ctx, func() error {
		if _, err := file.Seek(start, io.SeekStart); err != nil {
			return replicaerrors.NewObjectError("fetch", client.Name(), key, err)
		}
		callCtx, cancel := f.callContext(ctx)
		defer cancel()
		body, err := client.GetRange(callCtx, key, start, end)
		if err != nil {
			return err
		}
		defer body.Close()
		copied, err := io.CopyBuffer(file, io.LimitReader(body, want), buf)
		if err != nil {
			return replicaerrors.NewObjectError("fetch", client.Name(), key, err)
		}
		if copied != want {
			return replicaerrors.NewObjectError("fetch", client.Name(), key,
				fmt.Errorf("short range read: got %d bytes, want %d", copied, want))
		}
		n = copied
		return nil
	})
	return n, err
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, f.timeout)
}
