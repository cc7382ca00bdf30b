package auditx

import "time"

// Level classifies the operational severity of an audit entry.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Action is the tracked operation an audit entry records.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionModify  Action = "modify"
	ActionDelete  Action = "delete"
	ActionAccess  Action = "access"
	ActionExport  Action = "export"
	ActionExecute Action = "execute"
	ActionLogin   Action = "login"
	ActionLogout  Action = "logout"
)

// Entry is one append-only audit record.
//
// Once written an entry is immutable; the only mutation in its lifecycle is
// the field-encryption step applied before persistence. Entries are buffered
// in memory, flushed in batches, retained for RetentionDays and then eligible
// for purge (purge enforcement lives outside this pipeline).
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Level        Level     `json:"level"`
	Source       string    `json:"source"`
	Action       Action    `json:"action"`
	Message      string    `json:"message"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	UserID       string    `json:"user_id,omitempty"`

	BeforeState Record `json:"before_state,omitempty"`
	AfterState  Record `json:"after_state,omitempty"`

	// ComplianceImpact marks entries a compliance export must include.
	ComplianceImpact bool `json:"compliance_impact"`

	// RiskScore is the weighted action/classification score, clamped [0,10].
	RiskScore int `json:"risk_score"`

	// EncryptedData holds the field-encrypted sensitive attributes, keyed by
	// field name. Present only when a master encryption key is configured.
	EncryptedData map[string]string `json:"encrypted_data,omitempty"`

	// Details holds the sensitive attributes in plaintext when the pipeline
	// runs without an encryption key (degraded mode). Exactly one of
	// EncryptedData and Details carries the sensitive attributes.
	Details map[string]any `json:"details,omitempty"`

	// PrevHash links this entry to its predecessor; DataHash is
	// SHA256(PrevHash | canonical(entry)). Together they form the tamper
	// evidence chain.
	PrevHash string `json:"prev_hash"`
	DataHash string `json:"data_hash"`

	RetentionDays int `json:"retention_days"`
}

// EntryContext carries request-scoped attributes into Log. All fields are
// optional.
type EntryContext struct {
	// UserID identifies the acting principal.
	UserID string

	// IPAddress is the caller's address; it is one of the field-encrypted
	// sensitive attributes.
	IPAddress string

	// PatientIdentifier, when the action concerns a patient record, is
	// field-encrypted before persistence.
	PatientIdentifier string

	// DataClassifications tags the touched data (e.g. "phi", "pii",
	// "confidential"); each recognized tag raises the entry's risk score.
	DataClassifications []string

	// EncryptionLevel describes how the touched data is stored at rest;
	// "none" (or empty) raises the risk score.
	EncryptionLevel string

	// Level overrides the default info level.
	Level Level

	// Metadata is free-form context; it is field-encrypted before
	// persistence.
	Metadata map[string]any

	// StackTrace, when recording a failure, is field-encrypted before
	// persistence.
	StackTrace string
}
