package auditx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Format is an export output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatXML  Format = "xml"
	FormatPDF  Format = "pdf"
)

// Scope is a preset selecting a family of audit events. Multiple scopes are
// unioned; explicit filter criteria then apply on top of the union.
type Scope string

const (
	// ScopeSecurity selects error/critical entries, deletions and high-risk
	// events.
	ScopeSecurity Scope = "security"

	// ScopeCompliance selects entries flagged with compliance impact.
	ScopeCompliance Scope = "compliance"

	// ScopeDataAccess selects read/access/export events.
	ScopeDataAccess Scope = "data-access"

	// ScopeAuth selects login/logout events.
	ScopeAuth Scope = "auth"
)

// AccessRestrictions are recorded as export metadata. Enforcement (IP
// checks, expiry, download counting) belongs to the serving layer, not this
// pipeline.
type AccessRestrictions struct {
	AllowedIPs    []string  `json:"allowed_ips,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	DownloadLimit int       `json:"download_limit,omitempty"`
}

// ExportRequest describes one export run. Requests are transient; only the
// resulting chain-of-custody metadata is persisted.
type ExportRequest struct {
	// Format selects the output serialization. Required.
	Format Format `json:"format"`

	// Scopes are unioned preset selectors; empty means no preset
	// restriction.
	Scopes []Scope `json:"scopes,omitempty"`

	// Filter holds the explicit criteria applied after scope selection.
	Filter Filter `json:"filter"`

	// IncludeSensitiveData keeps patient identifiers and before/after values
	// in the output. When false they are replaced with RedactionMarker
	// before serialization, so no intermediate representation ever holds
	// them.
	IncludeSensitiveData bool `json:"include_sensitive_data"`

	// Encrypt wraps the generated file with the pipeline's field encryption.
	Encrypt bool `json:"encrypt"`

	// Sign attaches an HMAC signature over the final file bytes.
	Sign bool `json:"sign"`

	// RequestedBy identifies the requester for chain of custody.
	RequestedBy string `json:"requested_by"`

	// Restrictions are recorded in the result metadata.
	Restrictions *AccessRestrictions `json:"restrictions,omitempty"`
}

// ExportResult references a generated export file and its integrity
// evidence.
type ExportResult struct {
	ExportID        string    `json:"export_id"`
	Format          Format    `json:"format"`
	FileName        string    `json:"file_name"`
	RecordsExported int       `json:"records_exported"`
	GeneratedAt     time.Time `json:"generated_at"`

	// File holds the final output bytes (encrypted when Encrypted is true).
	File []byte `json:"-"`

	// Location is where the sink stored the file, empty without a sink.
	Location string `json:"location,omitempty"`

	// RecordCountHash is SHA-256 over the decimal record count;
	// ContentHash is SHA-256 over the canonical serialization of the
	// exported records. Together they let a verifier confirm no records were
	// added, removed or altered after the export.
	RecordCountHash string `json:"record_count_hash"`
	ContentHash     string `json:"content_hash"`

	Encrypted bool   `json:"encrypted"`
	Signature string `json:"signature,omitempty"`
	SignedAt  int64  `json:"signed_at,omitempty"`

	RequestedBy  string              `json:"requested_by"`
	Restrictions *AccessRestrictions `json:"restrictions,omitempty"`
}

// ExportSink stores generated export files (object storage in production,
// in-memory in tests).
type ExportSink interface {
	// Store persists the file and returns its location. It must be
	// all-or-nothing: a failed store leaves no partial object behind.
	Store(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Exporter generates audit export files from a store.
type Exporter struct {
	store   AuditStore
	exports ExportStore
	sink    ExportSink
	crypto  *FieldCrypto
	signer  *Signer
	metrics MetricsCollector
	log     *slog.Logger
}

// NewExporter builds an Exporter. crypto may be nil (encryption requests
// then fail with ErrEncryptionDisabled); signer may be nil (signing requests
// fail with ErrSigningKeyMissing).
func NewExporter(store AuditStore, crypto *FieldCrypto, signer *Signer, opts ...Option) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfiguration)
	}
	o := applyOptions(opts)

	exports := o.exportStore
	if exports == nil {
		if es, ok := store.(ExportStore); ok {
			exports = es
		}
	}

	return &Exporter{
		store:   store,
		exports: exports,
		sink:    o.exportSink,
		crypto:  crypto,
		signer:  signer,
		metrics: o.metrics,
		log:     o.logger,
	}, nil
}

// Create runs one export: query, scope/filter selection, redaction,
// serialization, optional encryption and signing, sink upload, custody
// record.
//
// Cancellation is honored between stages; on error or cancellation no file is
// surfaced (generation happens in memory and the sink stores only the final
// bytes), so a partial export can never look complete. Zero matching records
// is a success: a valid empty-body file with hashes over the empty set.
func (x *Exporter) Create(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	switch req.Format {
	case FormatCSV, FormatJSON, FormatXLSX, FormatXML, FormatPDF:
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrExportFailed, req.Format)
	}
	if req.Encrypt && x.crypto == nil {
		return nil, fmt.Errorf("%w: export encryption requested", ErrEncryptionDisabled)
	}
	if req.Sign && (x.signer == nil || !x.signer.Enabled()) {
		return nil, fmt.Errorf("%w: export signing requested", ErrSigningKeyMissing)
	}

	entries, err := x.store.Query(ctx, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrExportFailed, err)
	}
	entries = applyScopes(entries, req.Scopes)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportCancelled, err)
	}

	// Redaction happens on copies, before any serialization, so sensitive
	// values never reach an intermediate representation.
	if !req.IncludeSensitiveData {
		entries = redactEntries(entries)
	}

	result := &ExportResult{
		ExportID:        uuid.NewString(),
		Format:          req.Format,
		RecordsExported: len(entries),
		GeneratedAt:     time.Now().UTC(),
		RequestedBy:     req.RequestedBy,
		Restrictions:    req.Restrictions,
	}
	result.FileName = fmt.Sprintf("audit-export-%s.%s", result.ExportID[:8], req.Format)

	result.RecordCountHash = sha256Hex([]byte(strconv.Itoa(len(entries))))
	contentBytes, err := canonicalBytes(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: content hashing: %w", ErrExportFailed, err)
	}
	result.ContentHash = sha256Hex(contentBytes)

	file, err := x.serialize(ctx, req.Format, entries, result)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportCancelled, err)
	}

	if req.Encrypt {
		encoded, err := x.crypto.EncryptField(file)
		if err != nil {
			return nil, err
		}
		file = []byte(encoded)
		result.Encrypted = true
	}

	if req.Sign {
		signed, err := x.signer.Sign(file)
		if err != nil {
			return nil, err
		}
		result.Signature = signed.Signature
		result.SignedAt = signed.Timestamp
	}

	result.File = file

	if x.sink != nil {
		location, err := x.sink.Store(ctx, result.FileName, file, contentTypeFor(req.Format))
		if err != nil {
			return nil, fmt.Errorf("%w: storing file: %w", ErrExportFailed, err)
		}
		result.Location = location
	}

	if x.exports != nil {
		if err := x.recordCustody(ctx, req, result); err != nil {
			return nil, err
		}
	}

	x.metrics.IncrementCounter("auditx.exports.created", map[string]string{"format": string(req.Format)})
	return result, nil
}

// recordCustody persists the chain-of-custody row for a completed export.
func (x *Exporter) recordCustody(ctx context.Context, req ExportRequest, result *ExportResult) error {
	envelope, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: custody envelope: %w", ErrExportFailed, err)
	}

	rec := &ExportRecord{
		ExportID:    result.ExportID,
		RequesterID: req.RequestedBy,
		CreatedAt:   result.GeneratedAt,
		FilePath:    result.Location,
		Envelope:    envelope,
	}
	if req.Restrictions != nil {
		rec.ExpiresAt = req.Restrictions.ExpiresAt
	}

	if err := x.exports.RecordExport(ctx, rec); err != nil {
		return fmt.Errorf("%w: recording custody: %w", ErrExportFailed, err)
	}
	return nil
}

// applyScopes keeps entries matching any of the requested scopes. No scopes
// means no preset restriction.
func applyScopes(entries []*Entry, scopes []Scope) []*Entry {
	if len(scopes) == 0 {
		return entries
	}
	var out []*Entry
	for _, e := range entries {
		for _, s := range scopes {
			if scopeMatches(s, e) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func scopeMatches(s Scope, e *Entry) bool {
	switch s {
	case ScopeSecurity:
		return e.Level == LevelError || e.Level == LevelCritical ||
			e.Action == ActionDelete || e.RiskScore >= 7
	case ScopeCompliance:
		return e.ComplianceImpact
	case ScopeDataAccess:
		return e.Action == ActionRead || e.Action == ActionAccess || e.Action == ActionExport
	case ScopeAuth:
		return e.Action == ActionLogin || e.Action == ActionLogout
	default:
		return false
	}
}

// redactEntries returns copies with the sensitive attributes replaced by the
// redaction marker.
func redactEntries(entries []*Entry) []*Entry {
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		c := *e
		if c.BeforeState != nil {
			c.BeforeState = Record{"redacted": RedactionMarker}
		}
		if c.AfterState != nil {
			c.AfterState = Record{"redacted": RedactionMarker}
		}
		if len(c.EncryptedData) > 0 {
			redacted := make(map[string]string, len(c.EncryptedData))
			for k := range c.EncryptedData {
				redacted[k] = RedactionMarker
			}
			c.EncryptedData = redacted
		}
		if len(c.Details) > 0 {
			redacted := make(map[string]any, len(c.Details))
			for k := range c.Details {
				redacted[k] = RedactionMarker
			}
			c.Details = redacted
		}
		out[i] = &c
	}
	return out
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func contentTypeFor(f Format) string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatXML:
		return "application/xml"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
