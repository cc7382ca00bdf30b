package auditx_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/auditx"
)

func discardLogger() auditx.Option {
	return auditx.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLogger_LogAndFlush(t *testing.T) {
	ctx := context.Background()
	logger, store, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	entry, err := logger.Log(ctx, auditx.ActionCreate, "patient_record", "rec-1",
		"record created", auditx.EntryContext{UserID: "nurse-7"}, nil, auditx.Record{"status": "active"})
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, auditx.GenesisHash, entry.PrevHash)
	assert.NotEmpty(t, entry.DataHash)
	assert.Equal(t, "nurse-7", entry.UserID)
	assert.Equal(t, auditx.DefaultRetentionDays, entry.RetentionDays)
	assert.Equal(t, 1, logger.Buffered())
	assert.Empty(t, store.Entries(), "entries stay buffered until flush")

	require.NoError(t, logger.Flush(ctx))
	assert.Zero(t, logger.Buffered())
	require.Len(t, store.Entries(), 1)
	assert.Equal(t, entry.DataHash, logger.LastHash())
}

func TestLogger_ChainLinksAcrossEntries(t *testing.T) {
	ctx := context.Background()
	logger, store, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := logger.Log(ctx, auditx.ActionRead, "chart", "c-1", "viewed",
			auditx.EntryContext{}, nil, nil)
		require.NoError(t, err)
	}
	require.NoError(t, logger.Flush(ctx))

	entries := store.Entries()
	require.Len(t, entries, 4)

	idx, err := auditx.VerifyChain(entries, auditx.GenesisHash)
	assert.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestLogger_ResumesChainAfterRestart(t *testing.T) {
	ctx := context.Background()
	logger, store, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	_, err = logger.Log(ctx, auditx.ActionCreate, "chart", "c-1", "created",
		auditx.EntryContext{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, logger.Close(ctx))

	// a fresh logger over the same store continues the chain, not a new one
	restarted, err := auditx.NewLogger(ctx, store, auditx.Config{}, nil, discardLogger())
	require.NoError(t, err)

	_, err = restarted.Log(ctx, auditx.ActionUpdate, "chart", "c-1", "updated",
		auditx.EntryContext{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, restarted.Flush(ctx))

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].DataHash, entries[1].PrevHash)

	idx, err := auditx.VerifyChain(entries, auditx.GenesisHash)
	assert.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestLogger_FlushRetainsEntriesOnFailure(t *testing.T) {
	ctx := context.Background()
	logger, store, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := logger.Log(ctx, auditx.ActionRead, "chart", "c-1", "viewed",
			auditx.EntryContext{}, nil, nil)
		require.NoError(t, err)
	}

	store.FailAppends(1)
	err = logger.Flush(ctx)
	assert.ErrorIs(t, err, auditx.ErrStorageUnavailable)
	assert.Equal(t, 3, logger.Buffered(), "failed flush must retain the batch")
	assert.Empty(t, store.Entries())

	// the retry delivers the same batch exactly once
	require.NoError(t, logger.Flush(ctx))
	assert.Zero(t, logger.Buffered())
	assert.Len(t, store.Entries(), 3)
}

func TestLogger_BufferBackpressure(t *testing.T) {
	ctx := context.Background()
	store := auditx.NewInMemoryStore()
	logger, err := auditx.NewLogger(ctx, store, auditx.Config{BufferSize: 2}, nil, discardLogger())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := logger.Log(ctx, auditx.ActionRead, "chart", "c-1", "viewed",
			auditx.EntryContext{}, nil, nil)
		require.NoError(t, err)
	}

	_, err = logger.Log(ctx, auditx.ActionRead, "chart", "c-1", "viewed",
		auditx.EntryContext{}, nil, nil)
	assert.ErrorIs(t, err, auditx.ErrBufferFull)

	// draining the buffer restores capacity; nothing was dropped
	require.NoError(t, logger.Flush(ctx))
	_, err = logger.Log(ctx, auditx.ActionRead, "chart", "c-1", "viewed",
		auditx.EntryContext{}, nil, nil)
	assert.NoError(t, err)
	require.NoError(t, logger.Flush(ctx))
	assert.Len(t, store.Entries(), 3)
}

func TestLogger_PlaintextModeStoresDetails(t *testing.T) {
	ctx := context.Background()
	logger, _, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	entry, err := logger.Log(ctx, auditx.ActionAccess, "patient_record", "rec-9",
		"chart opened", auditx.EntryContext{
			PatientIdentifier: "PT-42",
			IPAddress:         "192.0.2.10",
		}, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, entry.EncryptedData)
	assert.Equal(t, "PT-42", entry.Details["patient_identifier"])
	assert.Equal(t, "192.0.2.10", entry.Details["ip_address"])
}

func TestLogger_EncryptsSensitiveAttributes(t *testing.T) {
	ctx := context.Background()
	pipeline, _, err := auditx.NewTestPipeline(ctx)
	require.NoError(t, err)

	before := auditx.Record{"diagnosis": "stable"}
	after := auditx.Record{"diagnosis": "critical"}

	entry, err := pipeline.Logger.Log(ctx, auditx.ActionUpdate, "patient_record", "rec-9",
		"chart updated", auditx.EntryContext{
			PatientIdentifier: "PT-42",
			IPAddress:         "192.0.2.10",
		}, before, after)
	require.NoError(t, err)

	assert.Empty(t, entry.Details)
	assert.Nil(t, entry.BeforeState, "plaintext state must not survive encryption")
	assert.Nil(t, entry.AfterState)
	for _, field := range []string{"patient_identifier", "ip_address", "old_values", "new_values"} {
		assert.Contains(t, entry.EncryptedData, field)
	}

	crypto, err := auditx.NewFieldCrypto(auditx.TestEncryptionKey())
	require.NoError(t, err)
	plain, err := crypto.DecryptField(entry.EncryptedData["patient_identifier"])
	require.NoError(t, err)
	assert.Equal(t, "PT-42", string(plain))

	values, err := crypto.DecryptField(entry.EncryptedData["new_values"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"diagnosis":"critical"}`, string(values))
}

func TestLogger_SanitizesMessages(t *testing.T) {
	ctx := context.Background()
	pipeline, _, err := auditx.NewTestPipeline(ctx)
	require.NoError(t, err)

	entry, err := pipeline.Logger.Log(ctx, auditx.ActionRead, "patient_record", "rec-1",
		"viewed chart, SSN: 123-45-6789", auditx.EntryContext{}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "viewed chart, SSN: [SSN_REDACTED]", entry.Message)
	// PHI findings raise the risk score through the classification
	assert.GreaterOrEqual(t, entry.RiskScore, 4)
}

func TestLogger_RiskScore(t *testing.T) {
	ctx := context.Background()
	logger, _, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	tests := []struct {
		name   string
		action auditx.Action
		ec     auditx.EntryContext
		want   int
	}{
		{
			name:   "read with encrypted storage",
			action: auditx.ActionRead,
			ec:     auditx.EntryContext{EncryptionLevel: "aes-256-gcm"},
			want:   1,
		},
		{
			name:   "unencrypted read",
			action: auditx.ActionRead,
			ec:     auditx.EntryContext{EncryptionLevel: "none"},
			want:   2,
		},
		{
			name:   "delete of PHI",
			action: auditx.ActionDelete,
			ec: auditx.EntryContext{
				DataClassifications: []string{"phi"},
				EncryptionLevel:     "aes-256-gcm",
			},
			want: 10,
		},
		{
			name:   "export of confidential data, clamped",
			action: auditx.ActionExport,
			ec: auditx.EntryContext{
				DataClassifications: []string{"phi", "confidential"},
			},
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := logger.Log(ctx, tt.action, "chart", "c-1", "op", tt.ec, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entry.RiskScore)
		})
	}
}

func TestLogger_ComplianceImpact(t *testing.T) {
	ctx := context.Background()
	logger, _, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	del, err := logger.Log(ctx, auditx.ActionDelete, "chart", "c-1", "purged",
		auditx.EntryContext{}, nil, nil)
	require.NoError(t, err)
	assert.True(t, del.ComplianceImpact)

	changed, err := logger.Log(ctx, auditx.ActionUpdate, "chart", "c-1", "edited",
		auditx.EntryContext{},
		auditx.Record{"diagnosis": "a"}, auditx.Record{"diagnosis": "b"})
	require.NoError(t, err)
	assert.True(t, changed.ComplianceImpact, "sensitive field change flags the entry")

	benign, err := logger.Log(ctx, auditx.ActionUpdate, "chart", "c-1", "edited",
		auditx.EntryContext{},
		auditx.Record{"note": "a"}, auditx.Record{"note": "b"})
	require.NoError(t, err)
	assert.False(t, benign.ComplianceImpact)
}

func TestLogger_Close(t *testing.T) {
	ctx := context.Background()
	logger, store, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	_, err = logger.Log(ctx, auditx.ActionRead, "chart", "c-1", "viewed",
		auditx.EntryContext{}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, logger.Close(ctx))
	assert.Len(t, store.Entries(), 1, "close flushes the buffer")

	_, err = logger.Log(ctx, auditx.ActionRead, "chart", "c-1", "viewed",
		auditx.EntryContext{}, nil, nil)
	assert.ErrorIs(t, err, auditx.ErrLoggerClosed)
}

func TestLogger_ContextCancellation(t *testing.T) {
	ctx := context.Background()
	logger, _, err := auditx.NewTestLogger(ctx)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = logger.Log(cancelled, auditx.ActionRead, "chart", "c-1", "viewed",
		auditx.EntryContext{}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryStore_RejectsForkedChain(t *testing.T) {
	ctx := context.Background()
	store := auditx.NewInMemoryStore()

	first, err := auditx.TestEntry(auditx.GenesisHash, "e1")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, []*auditx.Entry{first}))

	// a writer that computed its link before the first append must be
	// rejected, not silently woven in
	stale, err := auditx.TestEntry(auditx.GenesisHash, "e2")
	require.NoError(t, err)
	err = store.Append(ctx, []*auditx.Entry{stale})
	assert.ErrorIs(t, err, auditx.ErrChainMismatch)

	linked, err := auditx.TestEntry(first.DataHash, "e3")
	require.NoError(t, err)
	assert.NoError(t, store.Append(ctx, []*auditx.Entry{linked}))
}
