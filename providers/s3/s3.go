// Package s3 provides an ExportSink that stores generated export files in an
// S3 bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hengadev/auditx"
)

// s3Client interface for S3 operations (allows mocking)
type s3Client interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Sink implements auditx.ExportSink over an S3 bucket. Objects are written
// under Prefix with the export's file name as the key.
type Sink struct {
	client s3Client
	bucket string
	prefix string
}

// Config holds configuration for the S3 export sink.
type Config struct {
	// Bucket is the destination bucket name. Required.
	Bucket string

	// Prefix is prepended to every object key (e.g. "exports/2026").
	Prefix string

	// Region is the AWS region. If empty, uses AWS_REGION or the AWS config
	// file.
	Region string

	// AWSConfig is an optional pre-configured AWS config. If provided,
	// Region is ignored.
	AWSConfig *aws.Config
}

// New creates an S3-backed export sink.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 sink requires a bucket", auditx.ErrInvalidConfiguration)
	}

	var awsConfig aws.Config
	var err error
	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", auditx.ErrStorageUnavailable, err)
		}
	}

	return &Sink{
		client: awss3.NewFromConfig(awsConfig),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store implements auditx.ExportSink. It returns the s3:// location of the
// written object.
func (s *Sink) Store(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: uploading %s to s3://%s: %w", auditx.ErrExportFailed, key, s.bucket, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
