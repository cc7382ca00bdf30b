package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/auditx"
)

// Mock S3 client for testing
type mockS3Client struct {
	putObjectFunc func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

func (m *mockS3Client) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, params, optFns...)
	}
	return &awss3.PutObjectOutput{}, nil
}

func TestSink_Store(t *testing.T) {
	ctx := context.Background()

	var gotKey, gotContentType string
	var gotBody []byte
	sink := &Sink{
		client: &mockS3Client{
			putObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
				assert.Equal(t, "audit-exports", aws.ToString(params.Bucket))
				gotKey = aws.ToString(params.Key)
				gotContentType = aws.ToString(params.ContentType)
				body, err := io.ReadAll(params.Body)
				require.NoError(t, err)
				gotBody = body
				return &awss3.PutObjectOutput{}, nil
			},
		},
		bucket: "audit-exports",
		prefix: "2026/q1",
	}

	location, err := sink.Store(ctx, "audit-export-abcd1234.csv", []byte("id,timestamp\n"), "text/csv")
	require.NoError(t, err)

	assert.Equal(t, "s3://audit-exports/2026/q1/audit-export-abcd1234.csv", location)
	assert.Equal(t, "2026/q1/audit-export-abcd1234.csv", gotKey)
	assert.Equal(t, "text/csv", gotContentType)
	assert.Equal(t, []byte("id,timestamp\n"), gotBody)
}

func TestSink_StoreWithoutPrefix(t *testing.T) {
	ctx := context.Background()
	sink := &Sink{client: &mockS3Client{}, bucket: "audit-exports"}

	location, err := sink.Store(ctx, "export.json", []byte("{}"), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "s3://audit-exports/export.json", location)
}

func TestSink_StoreError(t *testing.T) {
	ctx := context.Background()
	sink := &Sink{
		client: &mockS3Client{
			putObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
				return nil, errors.New("NoSuchBucket")
			},
		},
		bucket: "missing",
	}

	_, err := sink.Store(ctx, "export.csv", []byte("data"), "text/csv")
	assert.ErrorIs(t, err, auditx.ErrExportFailed)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, auditx.ErrInvalidConfiguration)
}
