// Package auditx is a compliance and audit integrity pipeline for systems
// that handle regulated data.
//
// The pipeline has four stages, usable independently or assembled with New:
//
//   - Detector pattern-matches free text against a fixed table of PHI/PII
//     identifiers (SSN, MRN, phone, email, ...) and produces a redaction map
//     plus sanitized text.
//   - Registry evaluates named compliance rules (HIPAA, GDPR, SOC2,
//     ISO27001, FDA) against a data record; each rule is a pure predicate
//     with an optional pure auto-fix.
//   - Logger buffers audit entries, field-encrypts sensitive attributes
//     (AES-256-GCM with PBKDF2-derived keys), and links entries into a
//     SHA-256 hash chain for tamper evidence.
//   - Exporter queries stored entries, redacts and re-serializes them into
//     CSV, JSON, XLSX, XML or PDF, and records chain-of-custody metadata
//     with integrity hashes.
//
// Basic usage:
//
//	cfg, err := auditx.LoadConfigFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := sqlite.Open("audit.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pipeline, err := auditx.New(ctx, store, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pipeline.Close(ctx)
//
//	report, err := pipeline.Inspect(ctx, noteText, record,
//	    []auditx.Standard{auditx.StandardHIPAA})
//
// # Degraded modes
//
// Missing encryption or signing keys do not fail startup: the pipeline runs
// with plaintext sensitive fields or unsigned outputs and logs a warning.
// This is a deliberate availability-over-confidentiality fallback; configure
// both keys (or a KeySource provider) for production.
//
// # Integrity
//
// Every audit entry's hash covers the previous entry's hash, so the whole
// log forms a hash chain verifiable with VerifyChain. Entries are append
// only; corrections are compensating entries. Stores enforce a
// previous-hash check at append time, which makes the chain safe under
// concurrent writers.
package auditx
