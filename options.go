package auditx

import "log/slog"

// Option customizes pipeline construction.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	metrics     MetricsCollector
	registry    *Registry
	detector    *Detector
	keySource   KeySource
	exportSink  ExportSink
	exportStore ExportStore
}

// WithLogger sets the slog logger used for operational messages (degraded
// mode warnings, flush failures). Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) { o.metrics = m }
}

// WithRegistry sets the compliance rule registry. Defaults to
// BuiltinRegistry().
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithDetector sets the PHI detector. Defaults to NewDetector().
func WithDetector(d *Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithKeySource sets the source of master key material, overriding the hex
// keys in Config. Use the vault or awskms providers to keep keys out of the
// configuration surface entirely.
func WithKeySource(ks KeySource) Option {
	return func(o *options) { o.keySource = ks }
}

// WithExportSink sets the destination for generated export files (e.g. the
// s3 provider). Without a sink, export files are returned in memory only.
func WithExportSink(s ExportSink) Option {
	return func(o *options) { o.exportSink = s }
}

// WithExportStore sets the chain-of-custody store for export metadata. When
// the AuditStore also implements ExportStore (sqlite, in-memory) it is used
// automatically; this option overrides that.
func WithExportStore(s ExportStore) Option {
	return func(o *options) { o.exportStore = s }
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = &NoOpMetricsCollector{}
	}
	if o.registry == nil {
		o.registry = BuiltinRegistry()
	}
	if o.detector == nil {
		o.detector = NewDetector()
	}
	return o
}
