package auditx

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"io"
	"log/slog"
	"time"
)

// Test helpers. These build fully functional pipelines over in-memory
// state with deterministic key material, so tests never need external
// services or environment variables.

// TestEncryptionKey returns a deterministic 32-byte master key for tests.
func TestEncryptionKey() []byte {
	sum := sha256.Sum256([]byte("auditx-test-encryption-key"))
	return sum[:]
}

// TestSigningKey returns a deterministic 64-byte signing key for tests.
func TestSigningKey() []byte {
	sum := sha512.Sum512([]byte("auditx-test-signing-key"))
	return sum[:]
}

// NewTestPipeline returns a pipeline over a fresh in-memory store with test
// keys configured and background flushing disabled (tests flush explicitly).
// The returned store is the pipeline's backing store.
func NewTestPipeline(ctx context.Context, opts ...Option) (*Pipeline, *InMemoryStore, error) {
	store := NewInMemoryStore()
	cfg := Config{
		DetectPII:     true,
		FlushInterval: 0,
	}

	opts = append([]Option{
		WithKeySource(StaticKeySource{
			Encryption: TestEncryptionKey(),
			Signing:    TestSigningKey(),
		}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	p, err := New(ctx, store, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, store, nil
}

// NewTestLogger returns a logger over a fresh in-memory store, without
// encryption and without background flushing.
func NewTestLogger(ctx context.Context, opts ...Option) (*Logger, *InMemoryStore, error) {
	store := NewInMemoryStore()
	cfg := Config{FlushInterval: 0}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)

	l, err := NewLogger(ctx, store, cfg, nil, opts...)
	if err != nil {
		return nil, nil, err
	}
	return l, store, nil
}

// TestEntry returns a minimal chained entry for store tests. prevHash anchors
// the entry; the returned entry's DataHash is already computed.
func TestEntry(prevHash, id string) (*Entry, error) {
	e := &Entry{
		ID:            id,
		Timestamp:     time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		Level:         LevelInfo,
		Source:        DefaultSource,
		Action:        ActionRead,
		Message:       "test entry",
		ResourceType:  "record",
		ResourceID:    id,
		RiskScore:     1,
		RetentionDays: DefaultRetentionDays,
		PrevHash:      prevHash,
	}
	hash, err := EntryHash(prevHash, e)
	if err != nil {
		return nil, err
	}
	e.DataHash = hash
	return e, nil
}
