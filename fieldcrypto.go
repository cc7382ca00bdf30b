package auditx

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/hengadev/errsx"
	"golang.org/x/crypto/pbkdf2"
)

// FieldCrypto encrypts individual audit fields with AES-256-GCM.
//
// Every field gets its own random salt and nonce; the field key is derived
// from the master key and the salt with PBKDF2 (100,000 iterations, SHA-512),
// and the salt doubles as GCM additional authenticated data. The encoded form
// is base64(salt || nonce || ciphertext+tag), so decryption needs nothing but
// the master key and the encoded string.
//
// Decryption fails closed: a wrong key, a tampered ciphertext or a tampered
// salt all surface ErrDecryptionFailed, never garbage plaintext.
type FieldCrypto struct {
	masterKey []byte
}

// NewFieldCrypto returns a FieldCrypto for a 32-byte master key.
func NewFieldCrypto(masterKey []byte) (*FieldCrypto, error) {
	if len(masterKey) != EncryptionKeyLength {
		return nil, NewKeyLengthError("encryption", EncryptionKeyLength, len(masterKey))
	}
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	return &FieldCrypto{masterKey: key}, nil
}

// EncryptField encrypts one plaintext value and returns the encoded payload.
func (f *FieldCrypto) EncryptField(plaintext []byte) (string, error) {
	salt := make([]byte, FieldSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("%w: salt generation: %w", ErrEncryptionFailed, err)
	}

	aead, err := f.fieldAEAD(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce generation: %w", ErrEncryptionFailed, err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, salt)

	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecryptField reverses EncryptField exactly: re-derive the key from the
// stored salt, verify the GCM tag, return the plaintext.
func (f *FieldCrypto) DecryptField(encoded string) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64: %w", ErrDecryptionFailed, err)
	}
	if len(payload) < FieldSaltLength {
		return nil, fmt.Errorf("%w: payload too short", ErrDecryptionFailed)
	}

	salt := payload[:FieldSaltLength]
	aead, err := f.fieldAEAD(salt)
	if err != nil {
		return nil, err
	}

	rest := payload[FieldSaltLength:]
	if len(rest) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: payload too short", ErrDecryptionFailed)
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return plaintext, nil
}

// EncryptFields encrypts the named keys of m in place of their plaintext
// values, returning the encrypted map. Keys absent from m are skipped.
// Failures are accumulated per field; when any field fails, no partial
// result is returned, because silently storing plaintext for a field that was
// requested encrypted would be a confidentiality breach.
func (f *FieldCrypto) EncryptFields(m map[string]any, fields []string) (map[string]string, error) {
	var errs errsx.Map
	out := make(map[string]string)

	for _, field := range fields {
		value, ok := m[field]
		if !ok || value == nil {
			continue
		}
		plaintext, err := encodeFieldValue(value)
		if err != nil {
			errs.Set(field, err)
			continue
		}
		encrypted, err := f.EncryptField(plaintext)
		if err != nil {
			errs.Set(field, err)
			continue
		}
		out[field] = encrypted
	}

	if err := errs.AsError(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return out, nil
}

// fieldAEAD derives the per-field key and builds the GCM instance.
func (f *FieldCrypto) fieldAEAD(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(f.masterKey, salt, PBKDF2Iterations, EncryptionKeyLength, sha512.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher init: %w", ErrEncryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: GCM init: %w", ErrEncryptionFailed, err)
	}
	return aead, nil
}

// encodeFieldValue turns a field value into bytes for encryption. Strings
// pass through; everything else is canonical JSON.
func encodeFieldValue(value any) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return canonicalBytes(value)
}
