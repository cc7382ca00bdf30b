package auditx

import "context"

// KeySource supplies the pipeline's master key material.
//
// Implementations:
//   - StaticKeySource: keys decoded from Config hex strings
//   - HashiCorp Vault KV v2: github.com/hengadev/auditx/providers/hashicorpvault
//   - AWS KMS: github.com/hengadev/auditx/providers/awskms
//
// A source may return (nil, nil) for a key it does not hold; the pipeline
// then degrades for that capability (plaintext or unsigned) with a logged
// warning, the same fallback as unset Config keys.
type KeySource interface {
	// EncryptionKey returns the 32-byte master encryption key, or nil when
	// field encryption is not provisioned.
	EncryptionKey(ctx context.Context) ([]byte, error)

	// SigningKey returns the 64-byte HMAC signing key, or nil when signing
	// is not provisioned.
	SigningKey(ctx context.Context) ([]byte, error)
}

// StaticKeySource holds key material directly. The zero value provides no
// keys.
type StaticKeySource struct {
	Encryption []byte
	Signing    []byte
}

// EncryptionKey implements KeySource.
func (s StaticKeySource) EncryptionKey(ctx context.Context) ([]byte, error) {
	return s.Encryption, nil
}

// SigningKey implements KeySource.
func (s StaticKeySource) SigningKey(ctx context.Context) ([]byte, error) {
	return s.Signing, nil
}
