package auditx

// Key material lengths
const (
	// EncryptionKeyLength is the required length of the master encryption key
	// in bytes. Per-field keys are derived from it with PBKDF2, so it must
	// carry the full AES-256 key strength.
	EncryptionKeyLength = 32

	// SigningKeyLength is the required length of the HMAC-SHA512 signing key
	// in bytes.
	SigningKeyLength = 64

	// FieldSaltLength is the per-field PBKDF2 salt length in bytes.
	FieldSaltLength = 16

	// PBKDF2Iterations is the iteration count for field-key derivation.
	PBKDF2Iterations = 100_000
)

// Environment variable names
const (
	// EnvEncryptionKey is the environment variable holding the hex-encoded
	// 32-byte master encryption key. When unset the pipeline runs in
	// plaintext mode with a logged warning.
	EnvEncryptionKey = "AUDITX_ENCRYPTION_KEY"

	// EnvSigningKey is the environment variable holding the hex-encoded
	// 64-byte HMAC signing key. When unset the pipeline runs unsigned with a
	// logged warning.
	EnvSigningKey = "AUDITX_SIGNING_KEY"

	// EnvRetentionDays is the environment variable for the audit retention
	// period in days.
	EnvRetentionDays = "AUDITX_RETENTION_DAYS"

	// EnvHIPAACompliant toggles the HIPAA rule set and stricter defaults.
	EnvHIPAACompliant = "AUDITX_HIPAA_COMPLIANT"

	// EnvDetectPII toggles PHI/PII detection on logged messages.
	EnvDetectPII = "AUDITX_DETECT_PII"

	// EnvMaxRequestSize is the environment variable for the maximum accepted
	// input size in bytes.
	EnvMaxRequestSize = "AUDITX_MAX_REQUEST_SIZE"

	// EnvSource is the environment variable for the audit source identifier.
	EnvSource = "AUDITX_SOURCE"
)

// Default values
const (
	// DefaultRetentionDays is seven years, the common HIPAA retention floor.
	DefaultRetentionDays = 2555

	// DefaultMaxRequestSize bounds inputs accepted by the detector and the
	// rule engine.
	DefaultMaxRequestSize = 10 << 20 // 10 MiB

	// DefaultBufferSize is the audit logger's in-memory entry buffer size.
	DefaultBufferSize = 256

	// DefaultSource identifies entries when no source is configured.
	DefaultSource = "auditx"
)

// RedactionMarker replaces sensitive export fields when an export is created
// without IncludeSensitiveData. It is a stable literal; downstream verifiers
// match on it.
const RedactionMarker = "[REDACTED]"

// GenesisHash anchors the first entry of an audit hash chain.
const GenesisHash = ""

// sensitiveEntryFields are the audit entry attributes that are individually
// encrypted when a master encryption key is configured.
var sensitiveEntryFields = []string{
	"patient_identifier",
	"ip_address",
	"metadata",
	"old_values",
	"new_values",
	"stack_trace",
}

// complianceSensitiveFields are the record attributes whose change between
// before/after state marks an entry as compliance relevant.
var complianceSensitiveFields = []string{
	"ssn",
	"dob",
	"medical_record",
	"diagnosis",
	"prescription",
}
