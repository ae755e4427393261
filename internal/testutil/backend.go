package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// MockBackend is a stateful mock implementation of backend.Client. By
// default it behaves like a tiny in-memory object store, so round-trip
// tests work without wiring every call; individual calls are overridden
// through the function fields to inject failures. All state is guarded by
// one mutex, and counters record how often each operation ran.
type MockBackend struct {
	BackendName string

	PutFunc               func(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	InitiateMultipartFunc func(ctx context.Context, key, contentType string) (string, error)
	UploadPartFunc        func(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error)
	CompleteMultipartFunc func(ctx context.Context, key, uploadID string, parts []backend.CompletedPart) (string, error)
	AbortMultipartFunc    func(ctx context.Context, key, uploadID string) error
	HeadFunc              func(ctx context.Context, key string) (*replicatypes.ObjectInfo, error)
	GetRangeFunc          func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	DeleteFunc            func(ctx context.Context, key string) error
	CopyFunc              func(ctx context.Context, srcKey, dstKey string) error
	ListFunc              func(ctx context.Context, prefix string) ([]replicatypes.ObjectInfo, error)
	PresignGetFunc        func(ctx context.Context, key string, ttl time.Duration) (string, error)

	mu       sync.Mutex
	objects  map[string]storedObject
	pending  map[string]*pendingUpload
	counts   map[string]int
	nextID   int
	nextETag int
}

type storedObject struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
}

type pendingUpload struct {
	key   string
	parts map[int32][]byte
}

// NewMockBackend creates a MockBackend with the given target name.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{
		BackendName: name,
		objects:     make(map[string]storedObject),
		pending:     make(map[string]*pendingUpload),
		counts:      make(map[string]int),
	}
}

// Name implements backend.Client.
func (m *MockBackend) Name() string {
	return m.BackendName
}

// Put implements backend.Client. The default stores the body in memory.
func (m *MockBackend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	m.count("Put")
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, body, size, contentType)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	etag := m.newETagLocked()
	m.objects[key] = storedObject{
		data:        data,
		contentType: contentType,
		etag:        etag,
		modified:    time.Now(),
	}
	return etag, nil
}

// InitiateMultipart implements backend.Client.
func (m *MockBackend) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	m.count("InitiateMultipart")
	if m.InitiateMultipartFunc != nil {
		return m.InitiateMultipartFunc(ctx, key, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	uploadID := fmt.Sprintf("upload-%s-%d", m.BackendName, m.nextID)
	m.pending[uploadID] = &pendingUpload{
		key:   key,
		parts: make(map[int32][]byte),
	}
	return uploadID, nil
}

// UploadPart implements backend.Client.
func (m *MockBackend) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error) {
	m.count("UploadPart")
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, key, uploadID, partNumber, body, size)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.pending[uploadID]
	if !ok {
		return "", replicaerrors.ErrObjectNotFound
	}
	up.parts[partNumber] = data
	return fmt.Sprintf("%s-part-%d", uploadID, partNumber), nil
}

// CompleteMultipart implements backend.Client. The default assembles the
// stored parts in the order the caller lists them into a finished object.
func (m *MockBackend) CompleteMultipart(ctx context.Context, key, uploadID string, parts []backend.CompletedPart) (string, error) {
	m.count("CompleteMultipart")
	if m.CompleteMultipartFunc != nil {
		return m.CompleteMultipartFunc(ctx, key, uploadID, parts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.pending[uploadID]
	if !ok {
		return "", replicaerrors.ErrObjectNotFound
	}
	var buf bytes.Buffer
	for _, p := range parts {
		data, ok := up.parts[p.Number]
		if !ok {
			return "", fmt.Errorf("missing part %d for upload %s", p.Number, uploadID)
		}
		buf.Write(data)
	}
	etag := m.newETagLocked()
	m.objects[key] = storedObject{
		data:     buf.Bytes(),
		etag:     etag,
		modified: time.Now(),
	}
	delete(m.pending, uploadID)
	return etag, nil
}

// AbortMultipart implements backend.Client. The default discards the
// pending upload and its parts.
func (m *MockBackend) AbortMultipart(ctx context.Context, key, uploadID string) error {
	m.count("AbortMultipart")
	if m.AbortMultipartFunc != nil {
		return m.AbortMultipartFunc(ctx, key, uploadID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, uploadID)
	return nil
}

// Head implements backend.Client.
func (m *MockBackend) Head(ctx context.Context, key string) (*replicatypes.ObjectInfo, error) {
	m.count("Head")
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, replicaerrors.NewObjectError("head", m.BackendName, key, replicaerrors.ErrObjectNotFound)
	}
	return &replicatypes.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		LastModified: obj.modified,
		ContentType:  obj.contentType,
	}, nil
}

// GetRange implements backend.Client. The default serves the stored bytes,
// clamping end to the object size the way HTTP range requests do.
func (m *MockBackend) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	m.count("GetRange")
	if m.GetRangeFunc != nil {
		return m.GetRangeFunc(ctx, key, start, end)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, replicaerrors.NewObjectError("getRange", m.BackendName, key, replicaerrors.ErrObjectNotFound)
	}
	size := int64(len(obj.data))
	if start < 0 || start >= size || end < start {
		return nil, replicaerrors.NewObjectError("getRange", m.BackendName, key, replicaerrors.ErrInvalidRange)
	}
	if end >= size {
		end = size - 1
	}
	data := append([]byte(nil), obj.data[start:end+1]...)
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements backend.Client.
func (m *MockBackend) Delete(ctx context.Context, key string) error {
	m.count("Delete")
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Copy implements backend.Client.
func (m *MockBackend) Copy(ctx context.Context, srcKey, dstKey string) error {
	m.count("Copy")
	if m.CopyFunc != nil {
		return m.CopyFunc(ctx, srcKey, dstKey)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[srcKey]
	if !ok {
		return replicaerrors.NewObjectError("copy", m.BackendName, srcKey, replicaerrors.ErrObjectNotFound)
	}
	cp := obj
	cp.data = append([]byte(nil), obj.data...)
	cp.etag = m.newETagLocked()
	cp.modified = time.Now()
	m.objects[dstKey] = cp
	return nil
}

// List implements backend.Client.
func (m *MockBackend) List(ctx context.Context, prefix string) ([]replicatypes.ObjectInfo, error) {
	m.count("List")
	if m.ListFunc != nil {
		return m.ListFunc(ctx, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]replicatypes.ObjectInfo, 0, len(keys))
	for _, key := range keys {
		obj := m.objects[key]
		out = append(out, replicatypes.ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.modified,
			ContentType:  obj.contentType,
		})
	}
	return out, nil
}

// PresignGet implements backend.Client.
func (m *MockBackend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.count("PresignGet")
	if m.PresignGetFunc != nil {
		return m.PresignGetFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", replicaerrors.NewObjectError("presign", m.BackendName, key, replicaerrors.ErrObjectNotFound)
	}
	return fmt.Sprintf("https://%s.mock.invalid/%s?ttl=%d", m.BackendName, key, int64(ttl.Seconds())), nil
}

// SeedObject stores an object directly, bypassing the upload path.
func (m *MockBackend) SeedObject(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storedObject{
		data:     append([]byte(nil), data...),
		etag:     m.newETagLocked(),
		modified: time.Now(),
	}
}

// ObjectData returns a stored object's bytes and whether it exists.
func (m *MockBackend) ObjectData(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// PendingUploads returns the number of multipart uploads that were started
// but neither completed nor aborted. A clean backend reports zero.
func (m *MockBackend) PendingUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Calls returns how many times the named operation ran.
func (m *MockBackend) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[op]
}

func (m *MockBackend) count(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[op]++
}

func (m *MockBackend) newETagLocked() string {
	m.nextETag++
	return fmt.Sprintf("\"etag-%s-%d\"", m.BackendName, m.nextETag)
}

// Verify that MockBackend implements the backend.Client interface
var _ backend.Client = (*MockBackend)(nil)
