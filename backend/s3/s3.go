// Package s3 implements the backend contract for S3-compatible object
// stores: AWS S3, Wasabi, MinIO and anything else speaking the protocol.
//
// The client disables the SDK's own retries; the engine's retry layer is
// the single authority on retry behavior. Provider errors are folded onto
// the engine's sentinel taxonomy so callers never see SDK types.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// defaultRegion is used when a target does not specify one.
const defaultRegion = "us-east-1"

// Client is an S3-compatible implementation of backend.Client, bound to
// one target and bucket.
type Client struct {
	name      string
	bucket    string
	api       s3api.S3API
	presigner s3api.Presigner
	limiter   *rate.Limiter
}

// Verify the backend contract is satisfied.
var _ backend.Client = (*Client)(nil)

// New creates a Client for the given target. Credentials are taken from
// the target; the SDK's credential chain is not consulted. SDK-level
// retries are disabled so the engine's retry policy governs.
//
// Returns:
//   - *Client: the configured client
//   - error: ErrInvalidTarget when the target is unusable
func New(ctx context.Context, target replicatypes.Target) (*Client, error) {
	if target.Name == "" {
		return nil, replicaerrors.NewError("backend", replicaerrors.ErrInvalidTarget).
			WithMessage("target name must not be empty")
	}
	if target.Bucket == "" {
		return nil, replicaerrors.NewBackendError("backend", target.Name, replicaerrors.ErrInvalidTarget).
			WithMessage("target bucket must not be empty")
	}
	if target.AccessKeyID == "" || target.SecretAccessKey == "" {
		return nil, replicaerrors.NewBackendError("backend", target.Name, replicaerrors.ErrInvalidTarget).
			WithMessage("target credentials must not be empty")
	}

	region := target.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(target.AccessKeyID, target.SecretAccessKey, ""),
		),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, replicaerrors.NewBackendError("backend", target.Name, err).
			WithMessage("failed to load AWS config")
	}

	var s3Opts []func(*awss3.Options)
	if target.Endpoint != "" {
		endpoint := target.Endpoint
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if target.PathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	raw := awss3.NewFromConfig(awsCfg, s3Opts...)
	c := &Client{
		name:      target.Name,
		bucket:    target.Bucket,
		api:       raw,
		presigner: awss3.NewPresignClient(raw),
	}
	if target.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(target.RequestsPerSecond), 1)
	}
	return c, nil
}

// NewWithAPI creates a Client over custom API implementations.
// This is primarily useful for testing with mock clients.
func NewWithAPI(name, bucket string, api s3api.S3API, presigner s3api.Presigner) *Client {
	return &Client{
		name:      name,
		bucket:    bucket,
		api:       api,
		presigner: presigner,
	}
}

// Name returns the backend's target name.
func (c *Client) Name() string {
	return c.name
}

// Put stores body as a single object.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := c.pace(ctx); err != nil {
		return "", err
	}
	input := &awss3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	out, err := c.api.PutObject(ctx, input)
	if err != nil {
		return "", replicaerrors.NewObjectError("put", c.name, key, mapError(err))
	}
	return aws.ToString(out.ETag), nil
}

// InitiateMultipart starts a multipart upload.
func (c *Client) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	if err := c.pace(ctx); err != nil {
		return "", err
	}
	input := &awss3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	out, err := c.api.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", replicaerrors.NewObjectError("initiate", c.name, key, mapError(err))
	}
	uploadID := aws.ToString(out.UploadId)
	if uploadID == "" {
		return "", replicaerrors.NewObjectError("initiate", c.name, key,
			errors.New("backend returned an empty upload ID"))
	}
	return uploadID, nil
}

// UploadPart uploads one part of a multipart upload.
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error) {
	if err := c.pace(ctx); err != nil {
		return "", err
	}
	out, err := c.api.UploadPart(ctx, &awss3.UploadPartInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", replicaerrors.NewObjectError("uploadPart", c.name, key, mapError(err))
	}
	return aws.ToString(out.ETag), nil
}

// CompleteMultipart commits a multipart upload from its uploaded parts
// and returns the finished object's entity tag.
func (c *Client) CompleteMultipart(ctx context.Context, key, uploadID string, parts []backend.CompletedPart) (string, error) {
	if err := c.pace(ctx); err != nil {
		return "", err
	}
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.Number),
		})
	}
	out, err := c.api.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return "", replicaerrors.NewObjectError("complete", c.name, key, mapError(err))
	}
	return aws.ToString(out.ETag), nil
}

// AbortMultipart abandons a multipart upload. Aborting an upload the
// backend no longer knows about is not an error.
func (c *Client) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if err := c.pace(ctx); err != nil {
		return err
	}
	_, err := c.api.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		mapped := mapError(err)
		if replicaerrors.IsObjectNotFound(mapped) {
			return nil
		}
		return replicaerrors.NewObjectError("abort", c.name, key, mapped)
	}
	return nil
}

// Head returns object metadata without retrieving the object.
func (c *Client) Head(ctx context.Context, key string) (*replicatypes.ObjectInfo, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	out, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, replicaerrors.NewObjectError("head", c.name, key, mapError(err))
	}
	return &replicatypes.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
	}, nil
}

// GetRange streams the inclusive byte range [start, end] of an object.
// The caller owns the returned reader and must close it.
func (c *Client) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, replicaerrors.NewObjectError("getRange", c.name, key, replicaerrors.ErrInvalidRange)
	}
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, replicaerrors.NewObjectError("getRange", c.name, key, mapError(err))
	}
	return out.Body, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.pace(ctx); err != nil {
		return err
	}
	_, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		mapped := mapError(err)
		if replicaerrors.IsObjectNotFound(mapped) {
			return nil
		}
		return replicaerrors.NewObjectError("delete", c.name, key, mapped)
	}
	return nil
}

// Copy duplicates an object within the backend's bucket.
func (c *Client) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := c.pace(ctx); err != nil {
		return err
	}
	_, err := c.api.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		CopySource: aws.String(c.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return replicaerrors.NewObjectError("copy", c.name, srcKey, mapError(err))
	}
	return nil
}

// List returns every object stored under prefix, following pagination.
func (c *Client) List(ctx context.Context, prefix string) ([]replicatypes.ObjectInfo, error) {
	var objects []replicatypes.ObjectInfo
	var continuation *string
	for {
		if err := c.pace(ctx); err != nil {
			return nil, err
		}
		out, err := c.api.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, replicaerrors.NewBackendError("list", c.name, mapError(err))
		}
		for _, obj := range out.Contents {
			objects = append(objects, replicatypes.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			return objects, nil
		}
		continuation = out.NextContinuationToken
	}
}

// PresignGet returns a time-limited URL granting read access to an object.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", replicaerrors.NewObjectError("presign", c.name, key, replicaerrors.ErrInvalidInput).
			WithMessage("ttl must be positive")
	}
	if err := c.pace(ctx); err != nil {
		return "", err
	}
	out, err := c.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(po *awss3.PresignOptions) {
		po.Expires = ttl
	})
	if err != nil {
		return "", replicaerrors.NewObjectError("presign", c.name, key, mapError(err))
	}
	return out.URL, nil
}

// pace blocks until the target's request limiter admits another call.
func (c *Client) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// mapError folds provider errors onto the engine's sentinel taxonomy.
// Unrecognized errors pass through unchanged; the retry layer treats them
// as transient.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return replicaerrors.ErrTimeout
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return replicaerrors.ErrObjectNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchUpload":
			return replicaerrors.ErrObjectNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return replicaerrors.ErrAccessDenied
		case "SlowDown", "TooManyRequests", "RequestLimitExceeded", "Throttling", "ThrottlingException":
			return replicaerrors.ErrThrottled
		case "RequestTimeout":
			return replicaerrors.ErrTimeout
		case "InvalidRange":
			return replicaerrors.ErrInvalidRange
		}
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "not found"), strings.Contains(errMsg, "no such key"):
		return replicaerrors.ErrObjectNotFound
	case strings.Contains(errMsg, "access denied"):
		return replicaerrors.ErrAccessDenied
	case strings.Contains(errMsg, "connection refused"),
		strings.Contains(errMsg, "connection reset"),
		strings.Contains(errMsg, "no such host"):
		return replicaerrors.ErrConnection
	case strings.Contains(errMsg, "timeout"), strings.Contains(errMsg, "deadline exceeded"):
		return replicaerrors.ErrTimeout
	}
	return err
}
