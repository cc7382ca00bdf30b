package auditx

import (
	"context"
	"fmt"
	"log/slog"
)

// Pipeline wires the four pipeline stages together: PHI detection,
// compliance validation, audit logging and export generation. The individual
// components remain usable on their own; Pipeline is the assembled form most
// deployments want.
type Pipeline struct {
	Detector *Detector
	Registry *Registry
	Logger   *Logger
	Exporter *Exporter

	cfg Config
	log *slog.Logger
}

// New builds a Pipeline over a store.
//
// Key material resolution order: an explicit WithKeySource option wins, then
// the hex keys in cfg. Missing keys do not fail construction — the pipeline
// starts in degraded mode (plaintext fields, unsigned exports) and logs a
// warning for each missing capability. This fallback favors availability
// over confidentiality and is part of the documented contract.
func New(ctx context.Context, store AuditStore, cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	encKey, signKey, err := resolveKeys(ctx, cfg, o.keySource)
	if err != nil {
		return nil, err
	}

	var crypto *FieldCrypto
	if len(encKey) > 0 {
		if crypto, err = NewFieldCrypto(encKey); err != nil {
			return nil, err
		}
	}

	var signer *Signer
	if len(signKey) > 0 {
		if signer, err = NewSigner(signKey); err != nil {
			return nil, err
		}
	} else {
		signer = NewDisabledSigner(o.logger)
	}

	logger, err := NewLogger(ctx, store, cfg, crypto, opts...)
	if err != nil {
		return nil, err
	}

	exporter, err := NewExporter(store, crypto, signer, opts...)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Detector: o.detector,
		Registry: o.registry,
		Logger:   logger,
		Exporter: exporter,
		cfg:      cfg,
		log:      o.logger,
	}, nil
}

// resolveKeys picks master key material from the key source or the config.
func resolveKeys(ctx context.Context, cfg Config, ks KeySource) (encKey, signKey []byte, err error) {
	if ks != nil {
		if encKey, err = ks.EncryptionKey(ctx); err != nil {
			return nil, nil, fmt.Errorf("resolving encryption key: %w", err)
		}
		if signKey, err = ks.SigningKey(ctx); err != nil {
			return nil, nil, fmt.Errorf("resolving signing key: %w", err)
		}
		return encKey, signKey, nil
	}
	return cfg.encryptionKeyBytes(), cfg.signingKeyBytes(), nil
}

// InspectionReport is the combined outcome of running a record and its text
// content through detection, validation and audit logging.
type InspectionReport struct {
	Detection  DetectionResult `json:"detection"`
	Compliance Result          `json:"compliance"`
	Entry      *Entry          `json:"entry"`
}

// Inspect runs the full pipeline over one record: detect PHI in text,
// validate the record against the requested standards, and write an audit
// entry capturing the outcome. The entry's message is the sanitized text, so
// PHI never reaches the audit trail in the clear.
func (p *Pipeline) Inspect(ctx context.Context, text string, record Record, standards []Standard) (*InspectionReport, error) {
	if max := p.cfg.MaxRequestSize; max > 0 && int64(len(text)) > max {
		return nil, fmt.Errorf("%w: input of %d bytes exceeds limit %d", ErrInvalidConfiguration, len(text), max)
	}

	detection := p.Detector.Detect(text)
	compliance := p.Registry.Validate(record, standards)

	ec := EntryContext{Level: LevelInfo}
	if detection.HasPHI {
		ec.DataClassifications = append(ec.DataClassifications, "phi")
	}
	if !compliance.Passed {
		ec.Level = LevelWarn
		ec.Metadata = map[string]any{
			"violations": len(compliance.Violations),
			"score":      compliance.Score,
		}
	}

	entry, err := p.Logger.Log(ctx, ActionAccess, "compliance_check", "", detection.SanitizedContent, ec, nil, record)
	if err != nil {
		return nil, err
	}

	return &InspectionReport{
		Detection:  detection,
		Compliance: compliance,
		Entry:      entry,
	}, nil
}

// Close flushes and shuts down the pipeline's logger.
func (p *Pipeline) Close(ctx context.Context) error {
	return p.Logger.Close(ctx)
}
