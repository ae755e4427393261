package replica

import (
	"context"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

func TestList_ReturnsOwnerObjects(t *testing.T) {
	primary := testutil.NewMockBackend("primary")
	primary.SeedObject("user_alice/b.txt", []byte("bravo"))
	primary.SeedObject("user_alice/a.txt", []byte("alfa"))
	primary.SeedObject("user_bob/c.txt", []byte("charlie"))

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary})

	listing, err := engine.List(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "primary", listing.Backend)
	require.Len(t, listing.Objects, 2)

	// Keys come back as the names the owner uploaded, not storage keys.
	assert.Equal(t, "a.txt", listing.Objects[0].Key)
	assert.Equal(t, "b.txt", listing.Objects[1].Key)
	assert.Equal(t, int64(4), listing.Objects[0].Size)
}

func TestList_FailsOverToNextBackend(t *testing.T) {
	primary := testutil.NewMockBackend("primary")
	primary.ListFunc = func(context.Context, string) ([]replicatypes.ObjectInfo, error) {
		return nil, replicaerrors.NewBackendError("list", "primary", replicaerrors.ErrConnection)
	}
	mirror := testutil.NewMockBackend("mirror")
	mirror.SeedObject("user_alice/a.txt", []byte("alfa"))

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary, mirror})

	listing, err := engine.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "mirror", listing.Backend)
	require.Len(t, listing.Objects, 1)
	assert.Equal(t, "a.txt", listing.Objects[0].Key)
}

func TestList_RejectsInvalidOwner(t *testing.T) {
	engine := newTestEngine(t, billy.NewInMemoryFS(),
		[]*testutil.MockBackend{testutil.NewMockBackend("primary")})

	_, err := engine.List(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, replicaerrors.ErrInvalidInput)
}

func TestDelete_RemovesAllReplicas(t *testing.T) {
	primary := testutil.NewMockBackend("primary")
	mirror := testutil.NewMockBackend("mirror")
	primary.SeedObject("user_alice/report.pdf", []byte("data"))
	mirror.SeedObject("user_alice/report.pdf", []byte("data"))

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary, mirror})

	require.NoError(t, engine.Delete(context.Background(), "alice", "report.pdf"))
	for _, mock := range []*testutil.MockBackend{primary, mirror} {
		_, ok := mock.ObjectData("user_alice/report.pdf")
		assert.False(t, ok, "object still on %s", mock.Name())
	}

	// Deleting an already deleted object succeeds.
	require.NoError(t, engine.Delete(context.Background(), "alice", "report.pdf"))
}

func TestDelete_AggregatesBackendFailures(t *testing.T) {
	primary := testutil.NewMockBackend("primary")
	primary.DeleteFunc = func(context.Context, string) error {
		return replicaerrors.NewBackendError("delete", "primary", replicaerrors.ErrConnection)
	}
	mirror := testutil.NewMockBackend("mirror")
	mirror.SeedObject("user_alice/report.pdf", []byte("data"))

	spy := &recorderSpy{}
	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary, mirror},
		WithMetrics(spy))

	err := engine.Delete(context.Background(), "alice", "report.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, replicaerrors.ErrConnection)

	// The healthy backend still lost its replica.
	_, ok := mirror.ObjectData("user_alice/report.pdf")
	assert.False(t, ok)
	assert.Contains(t, spy.failures, "primary")
}

func TestRename_MovesObjectOnAllBackends(t *testing.T) {
	payload := []byte("data")
	primary := testutil.NewMockBackend("primary")
	mirror := testutil.NewMockBackend("mirror")
	primary.SeedObject("user_alice/old.txt", payload)
	mirror.SeedObject("user_alice/old.txt", payload)

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary, mirror})

	// The new name passes through the same sanitizer uploads use.
	name, err := engine.Rename(context.Background(), "alice", "old.txt", "new?.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", name)

	for _, mock := range []*testutil.MockBackend{primary, mirror} {
		data, ok := mock.ObjectData("user_alice/new.txt")
		require.True(t, ok, "renamed object missing on %s", mock.Name())
		assert.Equal(t, payload, data)

		_, ok = mock.ObjectData("user_alice/old.txt")
		assert.False(t, ok, "old object still on %s", mock.Name())

		assert.Equal(t, 1, mock.Calls("Copy"))
		assert.Equal(t, 1, mock.Calls("Delete"))
	}
}

func TestRename_RejectsRenameToItself(t *testing.T) {
	engine := newTestEngine(t, billy.NewInMemoryFS(),
		[]*testutil.MockBackend{testutil.NewMockBackend("primary")})

	_, err := engine.Rename(context.Background(), "alice", "same.txt", "same.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, replicaerrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "itself")
}

func TestRename_CopyFailureKeepsOriginal(t *testing.T) {
	payload := []byte("data")
	primary := testutil.NewMockBackend("primary")
	primary.CopyFunc = func(context.Context, string, string) error {
		return replicaerrors.NewBackendError("copy", "primary", replicaerrors.ErrConnection)
	}
	mirror := testutil.NewMockBackend("mirror")
	primary.SeedObject("user_alice/old.txt", payload)
	mirror.SeedObject("user_alice/old.txt", payload)

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary, mirror})

	name, err := engine.Rename(context.Background(), "alice", "old.txt", "new.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, replicaerrors.ErrConnection)
	assert.Equal(t, "new.txt", name)

	// The failed backend keeps the object under its old name; the delete
	// never ran there.
	_, ok := primary.ObjectData("user_alice/old.txt")
	assert.True(t, ok)
	_, ok = primary.ObjectData("user_alice/new.txt")
	assert.False(t, ok)

	// The healthy backend completed the move.
	_, ok = mirror.ObjectData("user_alice/new.txt")
	assert.True(t, ok)
	_, ok = mirror.ObjectData("user_alice/old.txt")
	assert.False(t, ok)
}

func TestShareLink_IssuesPresignedURL(t *testing.T) {
	primary := testutil.NewMockBackend("primary")
	primary.SeedObject("user_alice/report.pdf", []byte("data"))

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary})

	url, err := engine.ShareLink(context.Background(), "alice", "report.pdf", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "primary.mock.invalid")
	assert.Contains(t, url, "user_alice/report.pdf")
	assert.Contains(t, url, "ttl=3600")
}

func TestShareLink_UsesConfiguredDefaultTTL(t *testing.T) {
	primary := testutil.NewMockBackend("primary")
	primary.SeedObject("user_alice/report.pdf", []byte("data"))

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary},
		WithShareTTL(30*time.Minute))

	url, err := engine.ShareLink(context.Background(), "alice", "report.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "ttl=1800")
}

func TestShareLink_SkipsBackendsMissingTheObject(t *testing.T) {
	primary := testutil.NewMockBackend("primary")
	mirror := testutil.NewMockBackend("mirror")
	mirror.SeedObject("user_alice/report.pdf", []byte("data"))

	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{primary, mirror})

	url, err := engine.ShareLink(context.Background(), "alice", "report.pdf", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "mirror.mock.invalid")

	// The first backend was probed but never asked to sign.
	assert.Equal(t, 1, primary.Calls("Head"))
	assert.Zero(t, primary.Calls("PresignGet"))
}

func TestShareLink_FailsWhenNoReplicaExists(t *testing.T) {
	engine := newTestEngine(t, billy.NewInMemoryFS(), []*testutil.MockBackend{
		testutil.NewMockBackend("primary"),
		testutil.NewMockBackend("mirror"),
	})

	_, err := engine.ShareLink(context.Background(), "alice", "report.pdf", time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, replicaerrors.ErrAllBackendsFailed)
	assert.ErrorIs(t, err, replicaerrors.ErrObjectNotFound)
}
