package auditx

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hengadev/errsx"
)

// Config holds the configuration for building a compliance pipeline.
//
// This struct contains only data, no behavior. Configuration can be loaded
// from any source (environment variables, YAML files, code) and passed
// explicitly to New.
//
// Key material is optional by design: when EncryptionKey or SigningKey is
// absent the pipeline degrades to plaintext/unsigned operation with a logged
// warning instead of failing startup. This availability-over-confidentiality
// fallback is deliberate and covered by tests; production deployments are
// expected to configure both keys.
type Config struct {
	// EncryptionKey is the hex-encoded 32-byte master key used to derive
	// per-field AES-256-GCM keys. Empty disables field encryption.
	EncryptionKey string `yaml:"encryption_key"`

	// SigningKey is the hex-encoded 64-byte HMAC-SHA512 key used to sign
	// audit data and export files. Empty disables signing.
	SigningKey string `yaml:"signing_key"`

	// AuditRetentionDays is stamped on every entry so a purge job (external
	// to this pipeline) can decide eligibility. Default: 2555 (seven years).
	AuditRetentionDays int `yaml:"audit_retention_days"`

	// HIPAACompliant enables the HIPAA rule set and marks the deployment as
	// handling PHI.
	HIPAACompliant bool `yaml:"hipaa_compliant"`

	// DetectPII runs the PHI detector over logged messages and raises entry
	// risk scores on findings.
	DetectPII bool `yaml:"detect_pii"`

	// MaxRequestSize bounds input text accepted by the detector, in bytes.
	// Default: 10 MiB.
	MaxRequestSize int64 `yaml:"max_request_size"`

	// Source identifies this process in audit entries. Default: "auditx".
	Source string `yaml:"source"`

	// BufferSize is the audit logger's bounded in-memory buffer. Log returns
	// ErrBufferFull once it is reached; entries are never silently dropped.
	// Default: 256.
	BufferSize int `yaml:"buffer_size"`

	// FlushInterval is the background flush period for buffered entries.
	// Zero disables the background worker (explicit Flush only).
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Validate checks the configuration and applies defaults to optional fields.
//
// Validation failures are accumulated per field and returned as a single
// error, so a misconfigured deployment reports every problem at once.
func (c *Config) Validate() error {
	var errs errsx.Map

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		switch {
		case err != nil:
			errs.Set("encryption_key", fmt.Errorf("%w: not valid hex: %w", ErrInvalidConfiguration, err))
		case len(key) != EncryptionKeyLength:
			errs.Set("encryption_key", NewKeyLengthError("encryption", EncryptionKeyLength, len(key)))
		}
	}

	if c.SigningKey != "" {
		key, err := hex.DecodeString(c.SigningKey)
		switch {
		case err != nil:
			errs.Set("signing_key", fmt.Errorf("%w: not valid hex: %w", ErrInvalidConfiguration, err))
		case len(key) != SigningKeyLength:
			errs.Set("signing_key", NewKeyLengthError("signing", SigningKeyLength, len(key)))
		}
	}

	if c.AuditRetentionDays < 0 {
		errs.Set("audit_retention_days", fmt.Errorf("%w: must not be negative", ErrInvalidConfiguration))
	}
	if c.AuditRetentionDays == 0 {
		c.AuditRetentionDays = DefaultRetentionDays
	}

	if c.MaxRequestSize < 0 {
		errs.Set("max_request_size", fmt.Errorf("%w: must not be negative", ErrInvalidConfiguration))
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = DefaultMaxRequestSize
	}

	if c.BufferSize < 0 {
		errs.Set("buffer_size", fmt.Errorf("%w: must not be negative", ErrInvalidConfiguration))
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}

	if c.FlushInterval < 0 {
		errs.Set("flush_interval", fmt.Errorf("%w: must not be negative", ErrInvalidConfiguration))
	}

	if c.Source == "" {
		c.Source = DefaultSource
	}

	return errs.AsError()
}

// encryptionKeyBytes returns the decoded master encryption key, or nil when
// encryption is not configured. Call after Validate.
func (c *Config) encryptionKeyBytes() []byte {
	if c.EncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil
	}
	return key
}

// signingKeyBytes returns the decoded signing key, or nil when signing is not
// configured. Call after Validate.
func (c *Config) signingKeyBytes() []byte {
	if c.SigningKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.SigningKey)
	if err != nil {
		return nil
	}
	return key
}
