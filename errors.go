package auditx

import (
	"errors"
	"fmt"
)

var (
	// High-level service errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrStorageUnavailable   = errors.New("audit storage unavailable")
	ErrExportFailed         = errors.New("export generation failed")
	ErrExportCancelled      = errors.New("export cancelled")

	// Crypto errors
	ErrEncryptionFailed   = errors.New("encryption failed")
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrEncryptionDisabled = errors.New("encryption not configured")
	ErrSigningKeyMissing  = errors.New("signing key not configured")
	ErrSignatureInvalid   = errors.New("signature verification failed")

	// Audit chain errors
	ErrChainMismatch = errors.New("audit hash chain mismatch")
	ErrChainBroken   = errors.New("audit hash chain broken")

	// Logger errors
	ErrBufferFull   = errors.New("audit buffer full")
	ErrLoggerClosed = errors.New("audit logger closed")

	// Rule engine errors
	ErrDuplicateRule = errors.New("rule already registered")
	ErrUnknownRule   = errors.New("unknown rule")
)

// NewKeyLengthError reports a key of the wrong size for its purpose.
func NewKeyLengthError(purpose string, want, got int) error {
	return fmt.Errorf("%w: %s key must be %d bytes, got %d",
		ErrInvalidConfiguration, purpose, want, got)
}

// NewChainMismatchError reports a failed previous-hash check at append time.
func NewChainMismatchError(want, got string) error {
	return fmt.Errorf("%w: expected previous hash %q, store tail is %q",
		ErrChainMismatch, want, got)
}

// NewChainBrokenError reports a tampered or re-ordered entry found during
// chain verification.
func NewChainBrokenError(index int, entryID string) error {
	return fmt.Errorf("%w: entry %d (%s) does not match recomputed hash",
		ErrChainBroken, index, entryID)
}

// IsRetryableError returns true if the error represents a transient failure
// that might succeed on retry. Buffered audit entries are kept on retryable
// flush failures.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsCryptoError returns true if the error represents a cryptographic failure.
// Crypto failures are never downgraded to plaintext results.
func IsCryptoError(err error) bool {
	return errors.Is(err, ErrEncryptionFailed) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrSignatureInvalid)
}

// IsConfigurationError returns true if the error represents a configuration
// problem rather than a runtime failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrEncryptionDisabled) ||
		errors.Is(err, ErrSigningKeyMissing)
}

// IsIntegrityError returns true if the error indicates tampering with stored
// audit data. Integrity errors are terminal for the affected entries; they
// must never be auto-corrected.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrChainMismatch) ||
		errors.Is(err, ErrChainBroken) ||
		errors.Is(err, ErrSignatureInvalid)
}
