package atomgo

import (
	"log/slog"
)

type options struct {
	logger         *Logger
	metrics        MetricsCollector
	collector      Collector
	memoryLimit    int64
	permanentNames []string
	bootstrap      func(*Runtime) error
}

// Option configures Runtime construction.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithCollector wires the garbage collector the table cooperates with.
// The default collector treats every atom as live and never reclaims.
func WithCollector(c Collector) Option {
	return func(o *options) {
		o.collector = c
	}
}

// WithMemoryLimit caps the bytes held by atom content. Interning beyond the
// limit fails with ErrOutOfMemory until a sweep frees storage.
// A limit <= 0 disables the cap (usage is still tracked).
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithPermanentNames interns the given well-known names into the permanent
// atom set during root-runtime bootstrap. Permanent atoms are shared
// read-only by every child runtime and are never collected.
func WithPermanentNames(names []string) Option {
	return func(o *options) {
		o.permanentNames = names
	}
}

// WithBootstrap runs fn while the permanent set is still open: every atom
// interned inside it is morphed into a permanent atom. Bootstrap runs single
// threaded, before any zone or child runtime exists.
func WithBootstrap(fn func(*Runtime) error) Option {
	return func(o *options) {
		o.bootstrap = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:    NoopLogger(),
		metrics:   NoopMetricsCollector{},
		collector: NoopCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	if o.collector == nil {
		o.collector = NoopCollector{}
	}
	return o
}
