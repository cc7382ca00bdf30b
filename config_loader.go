package auditx

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadConfigFromEnvironment loads configuration from environment variables.
//
// It follows the 12-factor methodology: every recognized option maps to one
// AUDITX_* variable. All variables are optional; missing key material puts
// the pipeline into degraded (plaintext/unsigned) mode, which New reports
// with a warning.
//
// Recognized variables:
//   - AUDITX_ENCRYPTION_KEY: hex-encoded 32-byte master encryption key
//   - AUDITX_SIGNING_KEY: hex-encoded 64-byte HMAC signing key
//   - AUDITX_RETENTION_DAYS: audit retention period (default 2555)
//   - AUDITX_HIPAA_COMPLIANT: "true" to enable the HIPAA rule set
//   - AUDITX_DETECT_PII: "true" to scan logged messages for PHI
//   - AUDITX_MAX_REQUEST_SIZE: maximum input size in bytes
//   - AUDITX_SOURCE: audit source identifier
//
// Returns an error if a set variable fails to parse or validation fails.
func LoadConfigFromEnvironment() (Config, error) {
	cfg := Config{
		EncryptionKey: os.Getenv(EnvEncryptionKey),
		SigningKey:    os.Getenv(EnvSigningKey),
		Source:        os.Getenv(EnvSource),
	}

	if v := os.Getenv(EnvRetentionDays); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s must be an integer: %w", EnvRetentionDays, err)
		}
		cfg.AuditRetentionDays = days
	}

	if v := os.Getenv(EnvMaxRequestSize); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%s must be an integer: %w", EnvMaxRequestSize, err)
		}
		cfg.MaxRequestSize = size
	}

	var err error
	if cfg.HIPAACompliant, err = parseBoolEnv(EnvHIPAACompliant); err != nil {
		return Config{}, err
	}
	if cfg.DetectPII, err = parseBoolEnv(EnvDetectPII); err != nil {
		return Config{}, err
	}

	cfg.FlushInterval = 30 * time.Second

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parseBoolEnv(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
