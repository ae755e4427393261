// Package backend defines the contract every storage backend implements.
//
// One Client implementation covers any S3-compatible store; other store
// kinds plug in behind the same interface, so the transfer engine never
// branches on a backend's type. A Client is bound to one target and one
// bucket at construction.
package backend

import (
	"context"
	"io"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// CompletedPart identifies one uploaded part of a multipart upload.
type CompletedPart struct {
	// Number is the 1-based part number
	Number int32

	// ETag is the backend's entity tag for the part
	ETag string
}

// Client is the interface the engine drives every backend through.
//
// Implementations must be safe for concurrent use and must map provider
// errors onto the errors package sentinels so callers can classify
// failures without knowing the provider.
type Client interface {
	// Name returns the backend's target name.
	Name() string

	// Put stores body as a single object and returns its entity tag.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)

	// InitiateMultipart starts a multipart upload and returns its upload ID.
	InitiateMultipart(ctx context.Context, key, contentType string) (string, error)

	// UploadPart uploads one part of a multipart upload and returns its
	// entity tag.
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error)

	// CompleteMultipart commits a multipart upload from its uploaded parts
	// and returns the finished object's entity tag.
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error)

	// AbortMultipart abandons a multipart upload, discarding any stored
	// parts. Aborting an unknown upload is not an error.
	AbortMultipart(ctx context.Context, key, uploadID string) error

	// Head returns object metadata. Missing objects yield ErrObjectNotFound.
	Head(ctx context.Context, key string) (*replicatypes.ObjectInfo, error)

	// GetRange streams the inclusive byte range [start, end] of an object.
	GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Copy duplicates an object within the backend's bucket.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// List returns the objects stored under prefix.
	List(ctx context.Context, prefix string) ([]replicatypes.ObjectInfo, error)

	// PresignGet returns a time-limited URL granting read access to an
	// object without credentials.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Opener constructs a Client for one target. The engine calls it once per
// configured target at construction; tests substitute their own.
type Opener func(ctx context.Context, target replicatypes.Target) (Client, error)
