package auditx

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Signer produces and verifies HMAC-SHA512 signatures over audit data.
//
// The signature covers data concatenated with the signing timestamp, so a
// replayed signature cannot be moved to different content or a different
// time. Verification uses a constant-time comparison.
//
// A Signer can run in disabled mode (NewDisabledSigner): Sign then returns
// the plaintext unsigned and Verify accepts unsigned envelopes. This is
// deliberately weaker than the default and only entered when the deployment
// explicitly opts out of signing; a signer with no key that is NOT disabled
// refuses to sign or verify with ErrSigningKeyMissing.
type Signer struct {
	key      []byte
	disabled bool
}

// SignedData is a signed envelope around an opaque payload.
type SignedData struct {
	// Data is the signed payload.
	Data []byte `json:"data"`

	// Signature is the hex HMAC-SHA512 over Data|Timestamp; empty in
	// disabled mode.
	Signature string `json:"signature,omitempty"`

	// Timestamp is the unix-nanosecond signing time.
	Timestamp int64 `json:"timestamp"`
}

// NewSigner returns a Signer for a 64-byte key.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) != SigningKeyLength {
		return nil, NewKeyLengthError("signing", SigningKeyLength, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k}, nil
}

// NewDisabledSigner returns a Signer that passes data through unsigned. The
// warning is logged once at construction so operators can see the degraded
// mode in effect.
func NewDisabledSigner(log *slog.Logger) *Signer {
	if log != nil {
		log.Warn("audit signing disabled, entries and exports will be unsigned")
	}
	return &Signer{disabled: true}
}

// Enabled reports whether this signer produces real signatures.
func (s *Signer) Enabled() bool {
	return !s.disabled && len(s.key) == SigningKeyLength
}

// Sign wraps data in a signed envelope.
func (s *Signer) Sign(data []byte) (*SignedData, error) {
	now := time.Now().UnixNano()
	if s.disabled {
		return &SignedData{Data: data, Timestamp: now}, nil
	}
	if len(s.key) != SigningKeyLength {
		return nil, ErrSigningKeyMissing
	}
	return &SignedData{
		Data:      data,
		Signature: s.mac(data, now),
		Timestamp: now,
	}, nil
}

// Verify recomputes the HMAC over the envelope's data and timestamp and
// compares it in constant time. A mismatch means the envelope is untrusted;
// callers must not attempt to auto-correct it.
func (s *Signer) Verify(signed *SignedData) error {
	if signed == nil {
		return fmt.Errorf("%w: nil envelope", ErrSignatureInvalid)
	}
	if s.disabled {
		return nil
	}
	if len(s.key) != SigningKeyLength {
		return ErrSigningKeyMissing
	}

	expected := s.mac(signed.Data, signed.Timestamp)
	if !hmac.Equal([]byte(expected), []byte(signed.Signature)) {
		return ErrSignatureInvalid
	}
	return nil
}

func (s *Signer) mac(data []byte, timestamp int64) string {
	h := hmac.New(sha512.New, s.key)
	h.Write(data)
	fmt.Fprintf(h, "|%d", timestamp)
	return hex.EncodeToString(h.Sum(nil))
}
