package auditx_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/auditx"
)

func TestNewFieldCrypto_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{"valid 32-byte key", 32, false},
		{"too short", 16, true},
		{"too long", 64, true},
		{"empty", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auditx.NewFieldCrypto(make([]byte, tt.keyLen))
			if tt.wantErr {
				assert.ErrorIs(t, err, auditx.ErrInvalidConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFieldCrypto_RoundTrip(t *testing.T) {
	crypto, err := auditx.NewFieldCrypto(auditx.TestEncryptionKey())
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"simple value", "patient-12345"},
		{"empty value", ""},
		{"unicode", "café ∆ 患者"},
		{"json blob", `{"ssn":"123-45-6789","dob":"1980-01-01"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := crypto.EncryptField([]byte(tt.plaintext))
			require.NoError(t, err)
			assert.NotContains(t, encoded, tt.plaintext)

			decrypted, err := crypto.DecryptField(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, string(decrypted))
		})
	}
}

func TestFieldCrypto_UniqueCiphertexts(t *testing.T) {
	crypto, err := auditx.NewFieldCrypto(auditx.TestEncryptionKey())
	require.NoError(t, err)

	// per-field salt and nonce make repeated encryptions of the same value
	// distinct
	a, err := crypto.EncryptField([]byte("same plaintext"))
	require.NoError(t, err)
	b, err := crypto.EncryptField([]byte("same plaintext"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFieldCrypto_DecryptFailsClosed(t *testing.T) {
	crypto, err := auditx.NewFieldCrypto(auditx.TestEncryptionKey())
	require.NoError(t, err)

	encoded, err := crypto.EncryptField([]byte("sensitive"))
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		otherKey := sha256.Sum256([]byte("a different master key"))
		other, err := auditx.NewFieldCrypto(otherKey[:])
		require.NoError(t, err)

		_, err = other.DecryptField(encoded)
		assert.ErrorIs(t, err, auditx.ErrDecryptionFailed)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		payload, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		payload[len(payload)-1] ^= 0xff
		tampered := base64.StdEncoding.EncodeToString(payload)

		_, err = crypto.DecryptField(tampered)
		assert.ErrorIs(t, err, auditx.ErrDecryptionFailed)
	})

	t.Run("tampered salt", func(t *testing.T) {
		payload, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		payload[0] ^= 0xff
		tampered := base64.StdEncoding.EncodeToString(payload)

		_, err = crypto.DecryptField(tampered)
		assert.ErrorIs(t, err, auditx.ErrDecryptionFailed)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := crypto.DecryptField("%%% not base64 %%%")
		assert.ErrorIs(t, err, auditx.ErrDecryptionFailed)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := crypto.DecryptField(base64.StdEncoding.EncodeToString([]byte("short")))
		assert.ErrorIs(t, err, auditx.ErrDecryptionFailed)
	})
}

func TestFieldCrypto_EncryptFields(t *testing.T) {
	crypto, err := auditx.NewFieldCrypto(auditx.TestEncryptionKey())
	require.NoError(t, err)

	source := map[string]any{
		"patient_identifier": "PT-9931",
		"ip_address":         "10.1.2.3",
		"metadata":           map[string]any{"ward": "ICU"},
		"ignored":            "stays out",
	}

	encrypted, err := crypto.EncryptFields(source, []string{"patient_identifier", "ip_address", "metadata", "absent"})
	require.NoError(t, err)

	assert.Len(t, encrypted, 3)
	assert.NotContains(t, encrypted, "ignored")
	assert.NotContains(t, encrypted, "absent")

	plain, err := crypto.DecryptField(encrypted["patient_identifier"])
	require.NoError(t, err)
	assert.Equal(t, "PT-9931", string(plain))

	// non-string values round-trip through canonical JSON
	meta, err := crypto.DecryptField(encrypted["metadata"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"ward":"ICU"}`, string(meta))
}
