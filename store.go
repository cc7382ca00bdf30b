package auditx

import (
	"context"
	"strings"
	"sync"
	"time"
)

// AuditStore is the persistence contract for audit entries.
//
// Append is the chain serialization point: implementations must verify, under
// whatever transactional mechanism they have, that the first appended entry's
// PrevHash equals the current stored tail hash, and reject the batch with
// ErrChainMismatch otherwise. This compare-and-swap makes concurrent writers
// unable to produce a broken or ambiguous chain even if they race past the
// logger's own serialization.
type AuditStore interface {
	// Append atomically persists a batch of chained entries. The batch must
	// be internally linked (entry i+1's PrevHash == entry i's DataHash) and
	// anchored on the store's current tail.
	Append(ctx context.Context, entries []*Entry) error

	// LastHash returns the DataHash of the most recent stored entry, or
	// GenesisHash for an empty store.
	LastHash(ctx context.Context) (string, error)

	// Query returns stored entries matching the filter, in write order.
	Query(ctx context.Context, f Filter) ([]*Entry, error)

	// Close releases store resources.
	Close() error
}

// ExportStore records export chain-of-custody rows (the audit_exports
// schema).
type ExportStore interface {
	RecordExport(ctx context.Context, rec *ExportRecord) error
}

// ExportRecord is the persisted chain-of-custody row for one export.
type ExportRecord struct {
	ExportID    string    `json:"export_id"`
	RequesterID string    `json:"requester_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`

	// Envelope is the JSON-encoded export result metadata (hashes, filter
	// snapshot, restrictions).
	Envelope []byte `json:"envelope"`
}

// Filter selects stored audit entries.
type Filter struct {
	// Actions restricts to the listed actions; empty means all.
	Actions []Action

	// Levels restricts to the listed levels; empty means all.
	Levels []Level

	// UserID restricts to one acting principal.
	UserID string

	// ResourceType restricts to one resource type.
	ResourceType string

	// From/To bound the entry timestamp (inclusive from, exclusive to).
	// Zero values leave the bound open.
	From time.Time
	To   time.Time

	// ComplianceOnly selects entries flagged with compliance impact.
	ComplianceOnly bool

	// MinRiskScore drops entries below the threshold.
	MinRiskScore int

	// Search is a case-insensitive substring match over SearchFields.
	Search string

	// SearchFields names the entry attributes Search inspects. Empty uses
	// defaultSearchFields.
	SearchFields []string

	// Limit caps the number of returned entries; 0 means unlimited.
	Limit int
}

// defaultSearchFields are inspected by Filter.Search when no explicit field
// list is configured.
var defaultSearchFields = []string{"message", "resource_type", "resource_id", "user_id", "action"}

// Matches reports whether an entry satisfies every filter criterion.
func (f Filter) Matches(e *Entry) bool {
	if len(f.Actions) > 0 && !containsAction(f.Actions, e.Action) {
		return false
	}
	if len(f.Levels) > 0 && !containsLevel(f.Levels, e.Level) {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	if f.ComplianceOnly && !e.ComplianceImpact {
		return false
	}
	if f.MinRiskScore > 0 && e.RiskScore < f.MinRiskScore {
		return false
	}
	if f.Search != "" && !f.searchMatches(e) {
		return false
	}
	return true
}

func (f Filter) searchMatches(e *Entry) bool {
	needle := strings.ToLower(f.Search)
	fields := f.SearchFields
	if len(fields) == 0 {
		fields = defaultSearchFields
	}
	for _, field := range fields {
		var value string
		switch field {
		case "message":
			value = e.Message
		case "resource_type":
			value = e.ResourceType
		case "resource_id":
			value = e.ResourceID
		case "user_id":
			value = e.UserID
		case "action":
			value = string(e.Action)
		case "source":
			value = e.Source
		}
		if value != "" && strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

func containsAction(list []Action, a Action) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func containsLevel(list []Level, l Level) bool {
	for _, v := range list {
		if v == l {
			return true
		}
	}
	return false
}

// InMemoryStore is an AuditStore and ExportStore backed by slices. It is the
// default for tests and examples; production deployments use the sqlite
// provider.
type InMemoryStore struct {
	mu          sync.Mutex
	entries     []*Entry
	exports     []*ExportRecord
	failAppends int
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// FailAppends makes the next n Append calls fail with ErrStorageUnavailable.
// Used by tests to exercise the at-least-once flush contract.
func (s *InMemoryStore) FailAppends(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppends = n
}

// Append implements AuditStore with the previous-hash check.
func (s *InMemoryStore) Append(ctx context.Context, entries []*Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppends > 0 {
		s.failAppends--
		return ErrStorageUnavailable
	}

	tail := GenesisHash
	if n := len(s.entries); n > 0 {
		tail = s.entries[n-1].DataHash
	}
	if entries[0].PrevHash != tail {
		return NewChainMismatchError(entries[0].PrevHash, tail)
	}

	s.entries = append(s.entries, entries...)
	return nil
}

// LastHash implements AuditStore.
func (s *InMemoryStore) LastHash(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.entries); n > 0 {
		return s.entries[n-1].DataHash, nil
	}
	return GenesisHash, nil
}

// Query implements AuditStore.
func (s *InMemoryStore) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Entry
	for _, e := range s.entries {
		if !f.Matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// RecordExport implements ExportStore.
func (s *InMemoryStore) RecordExport(ctx context.Context, rec *ExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports = append(s.exports, rec)
	return nil
}

// Exports returns the recorded export rows.
func (s *InMemoryStore) Exports() []*ExportRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ExportRecord(nil), s.exports...)
}

// Entries returns the stored entries in write order.
func (s *InMemoryStore) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entry(nil), s.entries...)
}

// Close implements AuditStore.
func (s *InMemoryStore) Close() error { return nil }
