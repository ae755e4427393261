package testutil

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

func TestMockBackend(t *testing.T) {
	t.Run("stores and serves objects", func(t *testing.T) {
		mock := NewMockBackend("primary")

		etag, err := mock.Put(context.Background(), "user_a/obj.txt",
			strings.NewReader("hello"), 5, "text/plain")
		require.NoError(t, err)
		assert.NotEmpty(t, etag)

		info, err := mock.Head(context.Background(), "user_a/obj.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)
		assert.Equal(t, etag, info.ETag)
		assert.Equal(t, "text/plain", info.ContentType)

		rc, err := mock.GetRange(context.Background(), "user_a/obj.txt", 0, 4)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "hello", string(data))
	})

	t.Run("range reads clamp to the object size", func(t *testing.T) {
		mock := NewMockBackend("primary")
		mock.SeedObject("k", []byte("0123456789"))

		rc, err := mock.GetRange(context.Background(), "k", 5, 1<<20)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "56789", string(data))

		_, err = mock.GetRange(context.Background(), "k", 20, 30)
		assert.ErrorIs(t, err, replicaerrors.ErrInvalidRange)
	})

	t.Run("multipart lifecycle assembles parts", func(t *testing.T) {
		mock := NewMockBackend("primary")
		ctx := context.Background()

		uploadID, err := mock.InitiateMultipart(ctx, "user_a/big.bin", "application/octet-stream")
		require.NoError(t, err)
		require.NotEmpty(t, uploadID)

		var parts []backend.CompletedPart
		for i, chunk := range []string{"aaa", "bbb", "cc"} {
			etag, err := mock.UploadPart(ctx, "user_a/big.bin", uploadID,
				int32(i+1), strings.NewReader(chunk), int64(len(chunk)))
			require.NoError(t, err)
			parts = append(parts, backend.CompletedPart{Number: int32(i + 1), ETag: etag})
		}

		_, err = mock.CompleteMultipart(ctx, "user_a/big.bin", uploadID, parts)
		require.NoError(t, err)
		assert.Equal(t, 0, mock.PendingUploads())

		data, ok := mock.ObjectData("user_a/big.bin")
		require.True(t, ok)
		assert.Equal(t, "aaabbbcc", string(data))
	})

	t.Run("abort discards pending parts", func(t *testing.T) {
		mock := NewMockBackend("primary")
		ctx := context.Background()

		uploadID, err := mock.InitiateMultipart(ctx, "k", "")
		require.NoError(t, err)
		_, err = mock.UploadPart(ctx, "k", uploadID, 1, strings.NewReader("data"), 4)
		require.NoError(t, err)

		require.NoError(t, mock.AbortMultipart(ctx, "k", uploadID))
		assert.Equal(t, 0, mock.PendingUploads())

		_, err = mock.CompleteMultipart(ctx, "k", uploadID, nil)
		assert.Error(t, err)
		_, ok := mock.ObjectData("k")
		assert.False(t, ok)
	})

	t.Run("missing objects report not found", func(t *testing.T) {
		mock := NewMockBackend("primary")
		ctx := context.Background()

		_, err := mock.Head(ctx, "absent")
		assert.ErrorIs(t, err, replicaerrors.ErrObjectNotFound)

		_, err = mock.GetRange(ctx, "absent", 0, 10)
		assert.ErrorIs(t, err, replicaerrors.ErrObjectNotFound)

		err = mock.Copy(ctx, "absent", "dst")
		assert.ErrorIs(t, err, replicaerrors.ErrObjectNotFound)

		_, err = mock.PresignGet(ctx, "absent", 0)
		assert.ErrorIs(t, err, replicaerrors.ErrObjectNotFound)
	})

	t.Run("function fields override the default", func(t *testing.T) {
		mock := NewMockBackend("primary")
		mock.PutFunc = func(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
			return "", replicaerrors.ErrAccessDenied
		}

		_, err := mock.Put(context.Background(), "k", strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, replicaerrors.ErrAccessDenied)
		assert.Equal(t, 1, mock.Calls("Put"))

		// The override never stored anything.
		_, ok := mock.ObjectData("k")
		assert.False(t, ok)
	})

	t.Run("list filters by prefix and sorts", func(t *testing.T) {
		mock := NewMockBackend("primary")
		mock.SeedObject("user_a/b.txt", []byte("2"))
		mock.SeedObject("user_a/a.txt", []byte("1"))
		mock.SeedObject("user_b/c.txt", []byte("3"))

		infos, err := mock.List(context.Background(), "user_a/")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "user_a/a.txt", infos[0].Key)
		assert.Equal(t, "user_a/b.txt", infos[1].Key)
	})

	t.Run("copy duplicates the stored bytes", func(t *testing.T) {
		mock := NewMockBackend("primary")
		mock.SeedObject("src", []byte("payload"))

		require.NoError(t, mock.Copy(context.Background(), "src", "dst"))

		src, _ := mock.ObjectData("src")
		dst, ok := mock.ObjectData("dst")
		require.True(t, ok)
		assert.True(t, bytes.Equal(src, dst))
	})
}

func TestTestDataGenerator(t *testing.T) {
	t.Run("same seed yields the same payload", func(t *testing.T) {
		first := NewTestDataGenerator(42).Payload(256)
		second := NewTestDataGenerator(42).Payload(256)
		assert.Equal(t, first, second)

		other := NewTestDataGenerator(43).Payload(256)
		assert.NotEqual(t, first, other)
	})

	t.Run("write source file round trips", func(t *testing.T) {
		fsys := billy.NewInMemoryFS()
		payload, err := NewTestDataGenerator(1).WriteSourceFile(fsys, "/src/data.bin", 512)
		require.NoError(t, err)
		require.Len(t, payload, 512)

		stored, err := fsys.ReadFile("/src/data.bin")
		require.NoError(t, err)
		assert.Equal(t, payload, stored)
	})

	t.Run("targets are priority ordered", func(t *testing.T) {
		targets := NewTestDataGenerator(1).Targets(3)
		require.Len(t, targets, 3)
		for i, target := range targets {
			assert.Equal(t, i, target.Priority)
			assert.Contains(t, target.Name, "target-")
			assert.NotEmpty(t, target.Bucket)
			assert.NotEmpty(t, target.AccessKeyID)
		}
	})
}

func TestCollectSink(t *testing.T) {
	t.Run("separates aggregate and backend streams", func(t *testing.T) {
		sink := NewCollectSink()
		sink.Publish(replicatypes.ProgressSnapshot{Backend: "a", BytesTransferred: 1})
		sink.Publish(replicatypes.ProgressSnapshot{Backend: "", BytesTransferred: 2})
		sink.Publish(replicatypes.ProgressSnapshot{Backend: "a", BytesTransferred: 3, Done: true})

		assert.Len(t, sink.Backend("a"), 2)
		assert.Len(t, sink.Aggregate(), 1)

		last, ok := sink.Last()
		require.True(t, ok)
		assert.True(t, last.Done)
	})

	t.Run("snapshots returns a copy", func(t *testing.T) {
		sink := NewCollectSink()
		sink.Publish(replicatypes.ProgressSnapshot{Backend: "a"})

		snaps := sink.Snapshots()
		snaps[0].Backend = "mutated"

		fresh := sink.Snapshots()
		assert.Equal(t, "a", fresh[0].Backend)
	})

	t.Run("empty sink has no last snapshot", func(t *testing.T) {
		_, ok := NewCollectSink().Last()
		assert.False(t, ok)
	})
}
