package awskms

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/auditx"
)

// Mock KMS client for testing
type mockKMSClient struct {
	decryptFunc func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

func (m *mockKMSClient) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if m.decryptFunc != nil {
		return m.decryptFunc(ctx, params, optFns...)
	}
	return &kms.DecryptOutput{}, nil
}

func TestKeySource_EncryptionKey(t *testing.T) {
	ctx := context.Background()
	wantKey := auditx.TestEncryptionKey()

	ks := &KeySource{
		client: &mockKMSClient{
			decryptFunc: func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
				assert.Equal(t, []byte("ciphertext-blob"), params.CiphertextBlob)
				return &kms.DecryptOutput{Plaintext: wantKey}, nil
			},
		},
		encryptedDataKey: base64.StdEncoding.EncodeToString([]byte("ciphertext-blob")),
	}

	key, err := ks.EncryptionKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantKey, key)
}

func TestKeySource_SigningKey(t *testing.T) {
	ctx := context.Background()
	wantKey := auditx.TestSigningKey()

	ks := &KeySource{
		client: &mockKMSClient{
			decryptFunc: func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
				return &kms.DecryptOutput{Plaintext: wantKey}, nil
			},
		},
		encryptedSigningKey: base64.StdEncoding.EncodeToString([]byte("blob")),
	}

	key, err := ks.SigningKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantKey, key)
}

func TestKeySource_UnprovisionedKeysReturnNil(t *testing.T) {
	ctx := context.Background()
	ks := &KeySource{client: &mockKMSClient{}}

	key, err := ks.EncryptionKey(ctx)
	require.NoError(t, err)
	assert.Nil(t, key, "unprovisioned key means degraded mode, not an error")

	key, err = ks.SigningKey(ctx)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestKeySource_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("blob not base64", func(t *testing.T) {
		ks := &KeySource{
			client:           &mockKMSClient{},
			encryptedDataKey: "%%% not base64 %%%",
		}
		_, err := ks.EncryptionKey(ctx)
		assert.ErrorIs(t, err, auditx.ErrInvalidConfiguration)
	})

	t.Run("kms decrypt failure", func(t *testing.T) {
		ks := &KeySource{
			client: &mockKMSClient{
				decryptFunc: func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
					return nil, errors.New("AccessDeniedException")
				},
			},
			encryptedDataKey: base64.StdEncoding.EncodeToString([]byte("blob")),
		}
		_, err := ks.EncryptionKey(ctx)
		assert.Error(t, err)
	})

	t.Run("wrong plaintext length", func(t *testing.T) {
		ks := &KeySource{
			client: &mockKMSClient{
				decryptFunc: func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
					return &kms.DecryptOutput{Plaintext: make([]byte, 16)}, nil
				},
			},
			encryptedDataKey: base64.StdEncoding.EncodeToString([]byte("blob")),
		}
		_, err := ks.EncryptionKey(ctx)
		assert.ErrorIs(t, err, auditx.ErrInvalidConfiguration)
	})
}
