// Package awskms provides a KeySource backed by AWS Key Management Service.
//
// The master keys never live in AWS in the clear: the pipeline stores
// KMS-encrypted key blobs (for example in its config store or environment)
// and this provider calls kms.Decrypt to recover the raw key material at
// startup.
package awskms

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/hengadev/auditx"
)

// kmsClient interface for AWS KMS operations (allows mocking)
type kmsClient interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KeySource implements auditx.KeySource by decrypting stored key blobs with
// AWS KMS.
type KeySource struct {
	client kmsClient

	encryptedDataKey    string
	encryptedSigningKey string
}

// Config holds configuration for the KMS key source.
type Config struct {
	// EncryptedDataKey is the base64 KMS-encrypted 32-byte encryption key.
	// Empty means field encryption is not provisioned.
	EncryptedDataKey string

	// EncryptedSigningKey is the base64 KMS-encrypted 64-byte signing key.
	// Empty means export signing is not provisioned.
	EncryptedSigningKey string

	// Region is the AWS region. If empty, uses AWS_REGION or the AWS config
	// file.
	Region string

	// AWSConfig is an optional pre-configured AWS config. If provided,
	// Region is ignored.
	AWSConfig *aws.Config
}

// New creates a KMS-backed key source.
func New(ctx context.Context, cfg Config) (*KeySource, error) {
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
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", auditx.ErrInvalidConfiguration, err)
		}
	}

	return &KeySource{
		client:              kms.NewFromConfig(awsConfig),
		encryptedDataKey:    cfg.EncryptedDataKey,
		encryptedSigningKey: cfg.EncryptedSigningKey,
	}, nil
}

// EncryptionKey implements auditx.KeySource.
func (k *KeySource) EncryptionKey(ctx context.Context) ([]byte, error) {
	return k.decrypt(ctx, k.encryptedDataKey, "encryption", auditx.EncryptionKeyLength)
}

// SigningKey implements auditx.KeySource.
func (k *KeySource) SigningKey(ctx context.Context) ([]byte, error) {
	return k.decrypt(ctx, k.encryptedSigningKey, "signing", auditx.SigningKeyLength)
}

func (k *KeySource) decrypt(ctx context.Context, blob, purpose string, wantLen int) ([]byte, error) {
	if blob == "" {
		return nil, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted key is not valid base64: %w", auditx.ErrInvalidConfiguration, err)
	}

	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: ciphertext})
	if err != nil {
		return nil, fmt.Errorf("kms decrypt: %w", err)
	}
	if len(out.Plaintext) != wantLen {
		return nil, auditx.NewKeyLengthError(purpose, wantLen, len(out.Plaintext))
	}
	return out.Plaintext, nil
}
