package auditx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger buffers, chains and persists audit entries.
//
// Entries are created synchronously (risk scoring, field encryption, chain
// linking) but persisted in batches: a bounded in-memory buffer is flushed by
// a background worker on a timer and by explicit Flush calls. The buffer is
// never silently dropped; a failed flush keeps its entries for retry, so
// delivery is at-least-once. When the buffer is full, Log fails with
// ErrBufferFull rather than evicting older entries — backpressure is the
// explicit policy here.
//
// Chain-link computation is serialized under a single mutex, and the store's
// Append re-checks the previous hash transactionally, so concurrent callers
// cannot produce a broken or ambiguous chain.
type Logger struct {
	cfg      Config
	store    AuditStore
	crypto   *FieldCrypto
	detector *Detector
	metrics  MetricsCollector
	log      *slog.Logger

	mu       sync.Mutex
	buf      []*Entry
	lastHash string
	closed   bool

	flushMu sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewLogger builds a Logger over a validated config and a store. The chain
// tail is loaded from the store so restarts continue the existing chain.
//
// A nil FieldCrypto means the deployment runs in plaintext mode; callers
// normally construct Loggers through New, which resolves key material and
// warns on degraded modes.
func NewLogger(ctx context.Context, store AuditStore, cfg Config, crypto *FieldCrypto, opts ...Option) (*Logger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)

	lastHash, err := store.LastHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading chain tail: %w", ErrStorageUnavailable, err)
	}

	l := &Logger{
		cfg:      cfg,
		store:    store,
		crypto:   crypto,
		metrics:  o.metrics,
		log:      o.logger,
		lastHash: lastHash,
		stop:     make(chan struct{}),
	}
	if cfg.DetectPII {
		l.detector = o.detector
	}
	if crypto == nil {
		l.log.Warn("audit field encryption disabled, sensitive attributes stored in plaintext")
	}

	if cfg.FlushInterval > 0 {
		l.wg.Add(1)
		go l.flushLoop(cfg.FlushInterval)
	}
	return l, nil
}

// Log creates, chains and buffers one audit entry. The returned entry is the
// buffered value; treat it as read-only.
func (l *Logger) Log(ctx context.Context, action Action, resourceType, resourceID, message string, ec EntryContext, before, after Record) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	level := ec.Level
	if level == "" {
		level = LevelInfo
	}

	if l.detector != nil {
		if res := l.detector.Detect(message); res.HasPHI {
			message = res.SanitizedContent
			ec.DataClassifications = append(ec.DataClassifications, "phi")
			l.metrics.IncrementCounter("auditx.phi.detected", map[string]string{"source": l.cfg.Source})
		}
	}

	entry := &Entry{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		Level:            level,
		Source:           l.cfg.Source,
		Action:           action,
		Message:          message,
		ResourceType:     resourceType,
		ResourceID:       resourceID,
		UserID:           ec.UserID,
		BeforeState:      before,
		AfterState:       after,
		ComplianceImpact: complianceImpact(action, before, after),
		RiskScore:        riskScore(action, ec),
		RetentionDays:    l.cfg.AuditRetentionDays,
	}

	if err := l.attachSensitive(entry, ec); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoggerClosed
	}
	if len(l.buf) >= l.cfg.BufferSize {
		return nil, fmt.Errorf("%w: %d entries pending", ErrBufferFull, len(l.buf))
	}

	entry.PrevHash = l.lastHash
	hash, err := EntryHash(l.lastHash, entry)
	if err != nil {
		return nil, err
	}
	entry.DataHash = hash
	l.lastHash = hash
	l.buf = append(l.buf, entry)

	l.metrics.IncrementCounter("auditx.entries.logged", map[string]string{"action": string(action)})
	return entry, nil
}

// attachSensitive moves the sensitive attributes into EncryptedData, or into
// plaintext Details in degraded mode. With encryption active the before/after
// states are carried only in encrypted form.
func (l *Logger) attachSensitive(entry *Entry, ec EntryContext) error {
	sensitive := map[string]any{}
	if ec.PatientIdentifier != "" {
		sensitive["patient_identifier"] = ec.PatientIdentifier
	}
	if ec.IPAddress != "" {
		sensitive["ip_address"] = ec.IPAddress
	}
	if len(ec.Metadata) > 0 {
		sensitive["metadata"] = ec.Metadata
	}
	if ec.StackTrace != "" {
		sensitive["stack_trace"] = ec.StackTrace
	}

	if l.crypto == nil {
		if len(sensitive) > 0 {
			entry.Details = sensitive
		}
		return nil
	}

	if len(entry.BeforeState) > 0 {
		sensitive["old_values"] = entry.BeforeState
	}
	if len(entry.AfterState) > 0 {
		sensitive["new_values"] = entry.AfterState
	}

	encrypted, err := l.crypto.EncryptFields(sensitive, sensitiveEntryFields)
	if err != nil {
		// Never fall back to plaintext when encryption was requested.
		l.metrics.IncrementCounter("auditx.crypto.failures", nil)
		return err
	}
	if len(encrypted) > 0 {
		entry.EncryptedData = encrypted
	}
	if _, ok := encrypted["old_values"]; ok {
		entry.BeforeState = nil
	}
	if _, ok := encrypted["new_values"]; ok {
		entry.AfterState = nil
	}
	return nil
}

// Flush persists all currently buffered entries in one batch. On failure the
// buffer is left intact so the same entries are retried by the next call
// (at-least-once delivery). Concurrent flushes are serialized.
func (l *Logger) Flush(ctx context.Context) error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	l.mu.Lock()
	batch := append([]*Entry(nil), l.buf...)
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := l.store.Append(ctx, batch); err != nil {
		l.metrics.IncrementCounter("auditx.flush.failures", nil)
		if IsRetryableError(err) || IsIntegrityError(err) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	l.mu.Lock()
	// compact in place and drop references so flushed entries can be collected
	n := copy(l.buf, l.buf[len(batch):])
	for i := n; i < len(l.buf); i++ {
		l.buf[i] = nil
	}
	l.buf = l.buf[:n]
	l.mu.Unlock()

	l.metrics.IncrementCounterBy("auditx.entries.flushed", int64(len(batch)), nil)
	return nil
}

// Buffered returns the number of entries awaiting flush.
func (l *Logger) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

// LastHash returns the current chain tail, including buffered entries.
func (l *Logger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// Close stops the background worker, flushes remaining entries and marks the
// logger closed. A flush failure is returned and the entries stay buffered;
// Close can be retried.
func (l *Logger) Close(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()

	if err := l.Flush(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *Logger) flushLoop(interval time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Flush(context.Background()); err != nil {
				l.log.Warn("audit flush failed, entries retained for retry",
					slog.Int("buffered", l.Buffered()),
					slog.String("error", err.Error()))
			}
		case <-l.stop:
			return
		}
	}
}

// actionRiskWeights scores tracked actions by destructive potential.
var actionRiskWeights = map[Action]int{
	ActionDelete:  8,
	ActionExport:  7,
	ActionModify:  6,
	ActionExecute: 5,
	ActionUpdate:  5,
	ActionCreate:  4,
	ActionLogin:   3,
	ActionAccess:  2,
	ActionRead:    1,
	ActionLogout:  1,
}

// riskScore computes the weighted action score, raised by sensitive data
// classifications and by unencrypted storage, clamped to [0,10].
func riskScore(action Action, ec EntryContext) int {
	score := actionRiskWeights[action]

	for _, c := range ec.DataClassifications {
		switch c {
		case "phi":
			score += 2
		case "pii", "confidential":
			score++
		}
	}
	if ec.EncryptionLevel == "" || ec.EncryptionLevel == "none" {
		score++
	}

	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	return score
}

// complianceImpact flags entries for compliance exports: destructive or
// outbound actions always qualify, as does any change to a sensitive record
// field between before and after state.
func complianceImpact(action Action, before, after Record) bool {
	switch action {
	case ActionDelete, ActionExport, ActionModify:
		return true
	}
	for _, field := range complianceSensitiveFields {
		b, inBefore := before[field]
		a, inAfter := after[field]
		if inBefore != inAfter {
			return true
		}
		if inBefore && fmt.Sprint(b) != fmt.Sprint(a) {
			return true
		}
	}
	return false
}
