package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/input-output-hk/catalyst-forge-libs/replica/backend"
	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

func validTarget() replicatypes.Target {
	return replicatypes.Target{
		Name:            "wasabi-eu",
		Endpoint:        "http://localhost:9000",
		Region:          "eu-central-1",
		Bucket:          "replica-bucket",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		PathStyle:       true,
	}
}

// TestNew_Validation tests target validation at construction.
func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*replicatypes.Target)
	}{
		{
			name:   "empty target name",
			mutate: func(tg *replicatypes.Target) { tg.Name = "" },
		},
		{
			name:   "empty bucket",
			mutate: func(tg *replicatypes.Target) { tg.Bucket = "" },
		},
		{
			name:   "empty access key",
			mutate: func(tg *replicatypes.Target) { tg.AccessKeyID = "" },
		},
		{
			name:   "empty secret key",
			mutate: func(tg *replicatypes.Target) { tg.SecretAccessKey = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := validTarget()
			tt.mutate(&target)

			client, err := New(context.Background(), target)

			assert.Nil(t, client)
			assert.ErrorIs(t, err, replicaerrors.ErrInvalidTarget)
		})
	}
}

// TestNew_ConfiguresClient tests that a valid target produces a usable client.
func TestNew_ConfiguresClient(t *testing.T) {
	target := validTarget()
	target.RequestsPerSecond = 5

	client, err := New(context.Background(), target)

	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "wasabi-eu", client.Name())
	assert.Equal(t, "replica-bucket", client.bucket)
	assert.NotNil(t, client.api)
	assert.NotNil(t, client.presigner)
	assert.NotNil(t, client.limiter)

	// Without a request budget there is no limiter to wait on.
	unlimited := validTarget()
	client, err = New(context.Background(), unlimited)
	require.NoError(t, err)
	assert.Nil(t, client.limiter)
}

// TestClient_Put tests single-object uploads against a mocked API.
func TestClient_Put(t *testing.T) {
	mock := &testutil.MockS3{
		PutObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			assert.Equal(t, "replica-bucket", aws.ToString(params.Bucket))
			assert.Equal(t, "user_alice/report.pdf", aws.ToString(params.Key))
			assert.Equal(t, int64(11), aws.ToInt64(params.ContentLength))
			assert.Equal(t, "application/pdf", aws.ToString(params.ContentType))
			data, err := io.ReadAll(params.Body)
			require.NoError(t, err)
			assert.Equal(t, "hello world", string(data))
			return &awss3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})

	etag, err := client.Put(context.Background(), "user_alice/report.pdf",
		strings.NewReader("hello world"), 11, "application/pdf")

	require.NoError(t, err)
	assert.Equal(t, `"etag-1"`, etag)
}

// TestClient_Put_MapsProviderErrors tests that SDK failures surface as
// sentinel errors carrying backend and object context.
func TestClient_Put_MapsProviderErrors(t *testing.T) {
	mock := &testutil.MockS3{
		PutObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})

	_, err := client.Put(context.Background(), "user_alice/report.pdf",
		strings.NewReader("x"), 1, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, replicaerrors.ErrAccessDenied)
	assert.Contains(t, err.Error(), "wasabi-eu")
	assert.Contains(t, err.Error(), "user_alice/report.pdf")
}

// TestClient_MultipartFlow tests initiate, part upload and completion.
func TestClient_MultipartFlow(t *testing.T) {
	var completedParts []types.CompletedPart

	mock := &testutil.MockS3{
		CreateMultipartUploadFunc: func(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
			assert.Equal(t, "replica-bucket", aws.ToString(params.Bucket))
			assert.Equal(t, "user_alice/big.bin", aws.ToString(params.Key))
			assert.Equal(t, "application/octet-stream", aws.ToString(params.ContentType))
			return &awss3.CreateMultipartUploadOutput{UploadId: aws.String("mpu-1")}, nil
		},
		UploadPartFunc: func(ctx context.Context, params *awss3.UploadPartInput, optFns ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
			assert.Equal(t, "mpu-1", aws.ToString(params.UploadId))
			data, err := io.ReadAll(params.Body)
			require.NoError(t, err)
			assert.Equal(t, aws.ToInt64(params.ContentLength), int64(len(data)))
			etag := fmt.Sprintf(`"etag-part-%d"`, aws.ToInt32(params.PartNumber))
			return &awss3.UploadPartOutput{ETag: aws.String(etag)}, nil
		},
		CompleteMultipartUploadFunc: func(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
			assert.Equal(t, "mpu-1", aws.ToString(params.UploadId))
			completedParts = params.MultipartUpload.Parts
			return &awss3.CompleteMultipartUploadOutput{ETag: aws.String(`"final-etag"`)}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})
	ctx := context.Background()

	uploadID, err := client.InitiateMultipart(ctx, "user_alice/big.bin", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "mpu-1", uploadID)

	var parts []backend.CompletedPart
	for i := int32(1); i <= 3; i++ {
		etag, err := client.UploadPart(ctx, "user_alice/big.bin", uploadID, i,
			bytes.NewReader([]byte("part-data")), 9)
		require.NoError(t, err)
		parts = append(parts, backend.CompletedPart{Number: i, ETag: etag})
	}

	finalETag, err := client.CompleteMultipart(ctx, "user_alice/big.bin", uploadID, parts)
	require.NoError(t, err)
	assert.Equal(t, `"final-etag"`, finalETag)
	require.Len(t, completedParts, 3)
	for i, p := range completedParts {
		assert.Equal(t, int32(i+1), aws.ToInt32(p.PartNumber))
	}
}

// TestClient_InitiateMultipart_EmptyUploadID tests that a blank upload ID
// from the provider is rejected.
func TestClient_InitiateMultipart_EmptyUploadID(t *testing.T) {
	mock := &testutil.MockS3{
		CreateMultipartUploadFunc: func(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
			return &awss3.CreateMultipartUploadOutput{}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})

	_, err := client.InitiateMultipart(context.Background(), "user_alice/big.bin", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty upload ID")
}

// TestClient_AbortMultipart_UnknownUpload tests that aborting an upload the
// backend already dropped succeeds.
func TestClient_AbortMultipart_UnknownUpload(t *testing.T) {
	mock := &testutil.MockS3{
		AbortMultipartUploadFunc: func(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "NoSuchUpload", Message: "The specified upload does not exist"}
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})

	err := client.AbortMultipart(context.Background(), "user_alice/big.bin", "mpu-gone")

	assert.NoError(t, err)
}

// TestClient_Head tests metadata retrieval and the not-found mapping.
func TestClient_Head(t *testing.T) {
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock := &testutil.MockS3{
		HeadObjectFunc: func(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
			if aws.ToString(params.Key) != "user_alice/report.pdf" {
				return nil, &types.NotFound{}
			}
			return &awss3.HeadObjectOutput{
				ContentLength: aws.Int64(1024),
				ETag:          aws.String(`"etag-head"`),
				LastModified:  aws.Time(modified),
				ContentType:   aws.String("application/pdf"),
			}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})
	ctx := context.Background()

	info, err := client.Head(ctx, "user_alice/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "user_alice/report.pdf", info.Key)
	assert.Equal(t, int64(1024), info.Size)
	assert.Equal(t, `"etag-head"`, info.ETag)
	assert.Equal(t, modified, info.LastModified)
	assert.Equal(t, "application/pdf", info.ContentType)

	_, err = client.Head(ctx, "user_alice/missing.pdf")
	assert.ErrorIs(t, err, replicaerrors.ErrObjectNotFound)
}

// TestClient_GetRange tests the range header format and range validation.
func TestClient_GetRange(t *testing.T) {
	called := false
	mock := &testutil.MockS3{
		GetObjectFunc: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			called = true
			assert.Equal(t, "bytes=100-199", aws.ToString(params.Range))
			return &awss3.GetObjectOutput{
				Body: io.NopCloser(strings.NewReader("chunk-data")),
			}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})
	ctx := context.Background()

	body, err := client.GetRange(ctx, "user_alice/big.bin", 100, 199)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "chunk-data", string(data))
	assert.True(t, called)

	// Invalid ranges are rejected before any request is made.
	called = false
	_, err = client.GetRange(ctx, "user_alice/big.bin", -1, 10)
	assert.ErrorIs(t, err, replicaerrors.ErrInvalidRange)
	_, err = client.GetRange(ctx, "user_alice/big.bin", 50, 10)
	assert.ErrorIs(t, err, replicaerrors.ErrInvalidRange)
	assert.False(t, called)
}

// TestClient_Delete tests deletion and the missing-object tolerance.
func TestClient_Delete(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(*testutil.MockS3)
		wantErr   error
	}{
		{
			name: "successful delete",
			setupMock: func(m *testutil.MockS3) {
				m.DeleteObjectFunc = func(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
					assert.Equal(t, "replica-bucket", aws.ToString(params.Bucket))
					assert.Equal(t, "user_alice/report.pdf", aws.ToString(params.Key))
					return &awss3.DeleteObjectOutput{}, nil
				}
			},
		},
		{
			name: "missing object is not an error",
			setupMock: func(m *testutil.MockS3) {
				m.DeleteObjectFunc = func(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
					return nil, &types.NoSuchKey{}
				}
			},
		},
		{
			name: "denied delete surfaces",
			setupMock: func(m *testutil.MockS3) {
				m.DeleteObjectFunc = func(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
					return nil, &smithy.GenericAPIError{Code: "AccessDenied"}
				}
			},
			wantErr: replicaerrors.ErrAccessDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3{}
			tt.setupMock(mock)
			client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})

			err := client.Delete(context.Background(), "user_alice/report.pdf")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestClient_Copy tests the copy source format.
func TestClient_Copy(t *testing.T) {
	mock := &testutil.MockS3{
		CopyObjectFunc: func(ctx context.Context, params *awss3.CopyObjectInput, optFns ...func(*awss3.Options)) (*awss3.CopyObjectOutput, error) {
			assert.Equal(t, "replica-bucket/user_alice/old.pdf", aws.ToString(params.CopySource))
			assert.Equal(t, "user_alice/new.pdf", aws.ToString(params.Key))
			assert.Equal(t, "replica-bucket", aws.ToString(params.Bucket))
			return &awss3.CopyObjectOutput{}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})

	err := client.Copy(context.Background(), "user_alice/old.pdf", "user_alice/new.pdf")

	assert.NoError(t, err)
}

// TestClient_List_Paginates tests that listing follows continuation tokens.
func TestClient_List_Paginates(t *testing.T) {
	pages := 0
	mock := &testutil.MockS3{
		ListObjectsV2Func: func(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
			assert.Equal(t, "user_alice/", aws.ToString(params.Prefix))
			pages++
			if pages == 1 {
				assert.Nil(t, params.ContinuationToken)
				return &awss3.ListObjectsV2Output{
					Contents: []types.Object{
						{Key: aws.String("user_alice/a.txt"), Size: aws.Int64(10)},
						{Key: aws.String("user_alice/b.txt"), Size: aws.Int64(20)},
					},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("page-2"),
				}, nil
			}
			assert.Equal(t, "page-2", aws.ToString(params.ContinuationToken))
			return &awss3.ListObjectsV2Output{
				Contents: []types.Object{
					{Key: aws.String("user_alice/c.txt"), Size: aws.Int64(30)},
				},
			}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", mock, &testutil.MockPresigner{})

	objects, err := client.List(context.Background(), "user_alice/")

	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, objects, 3)
	assert.Equal(t, "user_alice/a.txt", objects[0].Key)
	assert.Equal(t, "user_alice/c.txt", objects[2].Key)
	assert.Equal(t, int64(30), objects[2].Size)
}

// TestClient_PresignGet tests presigned URL generation.
func TestClient_PresignGet(t *testing.T) {
	presigner := &testutil.MockPresigner{
		PresignGetObjectFunc: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
			assert.Equal(t, "user_alice/report.pdf", aws.ToString(params.Key))
			po := &awss3.PresignOptions{}
			for _, fn := range optFns {
				fn(po)
			}
			assert.Equal(t, 15*time.Minute, po.Expires)
			return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/report.pdf"}, nil
		},
	}
	client := NewWithAPI("wasabi-eu", "replica-bucket", &testutil.MockS3{}, presigner)
	ctx := context.Background()

	url, err := client.PresignGet(ctx, "user_alice/report.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/report.pdf", url)

	_, err = client.PresignGet(ctx, "user_alice/report.pdf", 0)
	assert.ErrorIs(t, err, replicaerrors.ErrInvalidInput)
}

// TestClient_PaceHonorsContext tests that a canceled context interrupts
// request pacing.
func TestClient_PaceHonorsContext(t *testing.T) {
	client := NewWithAPI("wasabi-eu", "replica-bucket", &testutil.MockS3{}, &testutil.MockPresigner{})
	client.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	// First call consumes the burst token.
	_, err := client.Put(context.Background(), "k", strings.NewReader("x"), 1, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Put(ctx, "k", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

// TestMapError tests the provider error taxonomy mapping.
func TestMapError(t *testing.T) {
	passthrough := errors.New("something else entirely")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil", in: nil, want: nil},
		{name: "canceled passes through", in: context.Canceled, want: context.Canceled},
		{name: "deadline becomes timeout", in: context.DeadlineExceeded, want: replicaerrors.ErrTimeout},
		{name: "typed no such key", in: &types.NoSuchKey{}, want: replicaerrors.ErrObjectNotFound},
		{name: "typed not found", in: &types.NotFound{}, want: replicaerrors.ErrObjectNotFound},
		{name: "code NoSuchUpload", in: &smithy.GenericAPIError{Code: "NoSuchUpload"}, want: replicaerrors.ErrObjectNotFound},
		{name: "code AccessDenied", in: &smithy.GenericAPIError{Code: "AccessDenied"}, want: replicaerrors.ErrAccessDenied},
		{name: "code InvalidAccessKeyId", in: &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, want: replicaerrors.ErrAccessDenied},
		{name: "code SlowDown", in: &smithy.GenericAPIError{Code: "SlowDown"}, want: replicaerrors.ErrThrottled},
		{name: "code Throttling", in: &smithy.GenericAPIError{Code: "Throttling"}, want: replicaerrors.ErrThrottled},
		{name: "code RequestTimeout", in: &smithy.GenericAPIError{Code: "RequestTimeout"}, want: replicaerrors.ErrTimeout},
		{name: "code InvalidRange", in: &smithy.GenericAPIError{Code: "InvalidRange"}, want: replicaerrors.ErrInvalidRange},
		{name: "connection refused text", in: errors.New("dial tcp 127.0.0.1:9000: connection refused"), want: replicaerrors.ErrConnection},
		{name: "no such host text", in: errors.New("lookup bucket.invalid: no such host"), want: replicaerrors.ErrConnection},
		{name: "timeout text", in: errors.New("request timeout after 30s"), want: replicaerrors.ErrTimeout},
		{name: "unknown passes through", in: passthrough, want: passthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
