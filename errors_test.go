package auditx

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"Invalid Configuration", ErrInvalidConfiguration},
		{"Storage Unavailable", ErrStorageUnavailable},
		{"Export Failed", ErrExportFailed},
		{"Export Cancelled", ErrExportCancelled},
		{"Encryption Failed", ErrEncryptionFailed},
		{"Decryption Failed", ErrDecryptionFailed},
		{"Encryption Disabled", ErrEncryptionDisabled},
		{"Signing Key Missing", ErrSigningKeyMissing},
		{"Signature Invalid", ErrSignatureInvalid},
		{"Chain Mismatch", ErrChainMismatch},
		{"Chain Broken", ErrChainBroken},
		{"Buffer Full", ErrBufferFull},
		{"Logger Closed", ErrLoggerClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("Expected errors.Is(wrapped, %v) to be true", tt.err)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		isRetryable bool
		isCrypto    bool
		isConfig    bool
		isIntegrity bool
	}{
		{
			name:        "Storage Unavailable",
			err:         fmt.Errorf("test: %w", ErrStorageUnavailable),
			isRetryable: true,
		},
		{
			name:     "Invalid Configuration",
			err:      fmt.Errorf("test: %w", ErrInvalidConfiguration),
			isConfig: true,
		},
		{
			name:     "Encryption Failed",
			err:      fmt.Errorf("test: %w", ErrEncryptionFailed),
			isCrypto: true,
		},
		{
			name:     "Decryption Failed",
			err:      fmt.Errorf("test: %w", ErrDecryptionFailed),
			isCrypto: true,
		},
		{
			name:     "Encryption Disabled",
			err:      fmt.Errorf("test: %w", ErrEncryptionDisabled),
			isConfig: true,
		},
		{
			name:     "Signing Key Missing",
			err:      fmt.Errorf("test: %w", ErrSigningKeyMissing),
			isConfig: true,
		},
		{
			name:        "Signature Invalid",
			err:         fmt.Errorf("test: %w", ErrSignatureInvalid),
			isCrypto:    true,
			isIntegrity: true,
		},
		{
			name:        "Chain Mismatch",
			err:         fmt.Errorf("test: %w", ErrChainMismatch),
			isIntegrity: true,
		},
		{
			name:        "Chain Broken",
			err:         fmt.Errorf("test: %w", ErrChainBroken),
			isIntegrity: true,
		},
		{
			name: "Unrelated error",
			err:  errors.New("something else"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.isRetryable {
				t.Errorf("IsRetryableError() = %v, want %v", got, tt.isRetryable)
			}
			if got := IsCryptoError(tt.err); got != tt.isCrypto {
				t.Errorf("IsCryptoError() = %v, want %v", got, tt.isCrypto)
			}
			if got := IsConfigurationError(tt.err); got != tt.isConfig {
				t.Errorf("IsConfigurationError() = %v, want %v", got, tt.isConfig)
			}
			if got := IsIntegrityError(tt.err); got != tt.isIntegrity {
				t.Errorf("IsIntegrityError() = %v, want %v", got, tt.isIntegrity)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	t.Run("key length", func(t *testing.T) {
		err := NewKeyLengthError("encryption", 32, 16)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("expected ErrInvalidConfiguration, got %v", err)
		}
	})

	t.Run("chain mismatch", func(t *testing.T) {
		err := NewChainMismatchError("abc", "def")
		if !errors.Is(err, ErrChainMismatch) {
			t.Errorf("expected ErrChainMismatch, got %v", err)
		}
	})

	t.Run("chain broken", func(t *testing.T) {
		err := NewChainBrokenError(3, "entry-3")
		if !errors.Is(err, ErrChainBroken) {
			t.Errorf("expected ErrChainBroken, got %v", err)
		}
	})
}
