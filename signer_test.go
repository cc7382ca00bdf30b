package auditx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/auditx"
)

func TestNewSigner_KeyLength(t *testing.T) {
	_, err := auditx.NewSigner(make([]byte, 32))
	assert.ErrorIs(t, err, auditx.ErrInvalidConfiguration)

	signer, err := auditx.NewSigner(auditx.TestSigningKey())
	require.NoError(t, err)
	assert.True(t, signer.Enabled())
}

func TestSigner_SignAndVerify(t *testing.T) {
	signer, err := auditx.NewSigner(auditx.TestSigningKey())
	require.NoError(t, err)

	signed, err := signer.Sign([]byte("export file contents"))
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Signature)
	assert.NotZero(t, signed.Timestamp)

	assert.NoError(t, signer.Verify(signed))
}

func TestSigner_VerifyRejectsTampering(t *testing.T) {
	signer, err := auditx.NewSigner(auditx.TestSigningKey())
	require.NoError(t, err)

	signed, err := signer.Sign([]byte("original"))
	require.NoError(t, err)

	t.Run("modified data", func(t *testing.T) {
		bad := *signed
		bad.Data = []byte("modified")
		assert.ErrorIs(t, signer.Verify(&bad), auditx.ErrSignatureInvalid)
	})

	t.Run("modified timestamp", func(t *testing.T) {
		// the timestamp is covered by the MAC, so a replay at a shifted time
		// fails
		bad := *signed
		bad.Timestamp++
		assert.ErrorIs(t, signer.Verify(&bad), auditx.ErrSignatureInvalid)
	})

	t.Run("stripped signature", func(t *testing.T) {
		bad := *signed
		bad.Signature = ""
		assert.ErrorIs(t, signer.Verify(&bad), auditx.ErrSignatureInvalid)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := auditx.NewSigner(make([]byte, auditx.SigningKeyLength))
		require.NoError(t, err)
		assert.ErrorIs(t, other.Verify(signed), auditx.ErrSignatureInvalid)
	})

	t.Run("nil envelope", func(t *testing.T) {
		assert.ErrorIs(t, signer.Verify(nil), auditx.ErrSignatureInvalid)
	})
}

func TestSigner_DisabledMode(t *testing.T) {
	signer := auditx.NewDisabledSigner(nil)
	assert.False(t, signer.Enabled())

	signed, err := signer.Sign([]byte("payload"))
	require.NoError(t, err)
	assert.Empty(t, signed.Signature)
	assert.Equal(t, []byte("payload"), signed.Data)

	// disabled verification accepts unsigned envelopes
	assert.NoError(t, signer.Verify(signed))
}
