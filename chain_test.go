package auditx_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/auditx"
)

func buildChain(t *testing.T, n int) []*auditx.Entry {
	t.Helper()
	entries := make([]*auditx.Entry, 0, n)
	prev := auditx.GenesisHash
	for i := 0; i < n; i++ {
		e, err := auditx.TestEntry(prev, fmt.Sprintf("entry-%d", i))
		require.NoError(t, err)
		entries = append(entries, e)
		prev = e.DataHash
	}
	return entries
}

func TestEntryHash_Deterministic(t *testing.T) {
	e, err := auditx.TestEntry(auditx.GenesisHash, "e1")
	require.NoError(t, err)

	again, err := auditx.EntryHash(auditx.GenesisHash, e)
	require.NoError(t, err)
	assert.Equal(t, e.DataHash, again, "hashing must ignore the stored DataHash")

	other, err := auditx.EntryHash("some-other-prev", e)
	require.NoError(t, err)
	assert.NotEqual(t, e.DataHash, other)
}

func TestVerifyChain(t *testing.T) {
	t.Run("empty chain is intact", func(t *testing.T) {
		idx, err := auditx.VerifyChain(nil, auditx.GenesisHash)
		assert.NoError(t, err)
		assert.Equal(t, -1, idx)
	})

	t.Run("intact chain", func(t *testing.T) {
		entries := buildChain(t, 5)
		idx, err := auditx.VerifyChain(entries, auditx.GenesisHash)
		assert.NoError(t, err)
		assert.Equal(t, -1, idx)
	})

	t.Run("edited entry is detected", func(t *testing.T) {
		entries := buildChain(t, 5)
		entries[2].Message = "rewritten after the fact"

		idx, err := auditx.VerifyChain(entries, auditx.GenesisHash)
		assert.ErrorIs(t, err, auditx.ErrChainBroken)
		assert.Equal(t, 2, idx)
	})

	t.Run("removed entry is detected", func(t *testing.T) {
		entries := buildChain(t, 5)
		entries = append(entries[:1], entries[2:]...)

		idx, err := auditx.VerifyChain(entries, auditx.GenesisHash)
		assert.ErrorIs(t, err, auditx.ErrChainBroken)
		assert.Equal(t, 1, idx)
	})

	t.Run("reordered entries are detected", func(t *testing.T) {
		entries := buildChain(t, 4)
		entries[1], entries[2] = entries[2], entries[1]

		idx, err := auditx.VerifyChain(entries, auditx.GenesisHash)
		assert.ErrorIs(t, err, auditx.ErrChainBroken)
		assert.Equal(t, 1, idx)
	})

	t.Run("forged hash is detected", func(t *testing.T) {
		entries := buildChain(t, 3)
		// keep the linkage consistent but lie about the content hash
		entries[2].DataHash = entries[2].PrevHash

		idx, err := auditx.VerifyChain(entries, auditx.GenesisHash)
		assert.ErrorIs(t, err, auditx.ErrChainBroken)
		assert.Equal(t, 2, idx)
	})

	t.Run("wrong genesis anchors fail at index zero", func(t *testing.T) {
		entries := buildChain(t, 2)
		idx, err := auditx.VerifyChain(entries, "not-the-genesis")
		assert.ErrorIs(t, err, auditx.ErrChainBroken)
		assert.Equal(t, 0, idx)
	})
}
