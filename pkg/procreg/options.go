package procreg

import (
	"log/slog"

	"github.com/randalmurphal/procreg/pkg/procreg/observability"
)

// Keys is the registry-wide policy on how many live entries a key may have.
type Keys int

const (
	// KeysUnique allows at most one live entry per key.
	KeysUnique Keys = iota + 1
	// KeysDuplicate allows any number of entries per key.
	KeysDuplicate
)

// String returns the policy name.
func (k Keys) String() string {
	switch k {
	case KeysUnique:
		return "unique"
	case KeysDuplicate:
		return "duplicate"
	default:
		return "unset"
	}
}

// registryConfig holds configuration assembled from Start options.
type registryConfig struct {
	mode       Keys
	partitions int
	listeners  []Listener
	meta       []MetaEntry
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		partitions: 1,
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
}

// MetaEntry seeds one meta key/value pair at Start.
type MetaEntry struct {
	Key   any
	Value any
}

// Option configures a registry at Start.
type Option func(*registryConfig)

// WithKeys sets the key policy. Required: Start fails without it.
func WithKeys(mode Keys) Option {
	return func(c *registryConfig) {
		c.mode = mode
	}
}

// WithPartitions sets the partition count. Default: 1 (non-sharded).
// More partitions lower write contention; reads scale either way.
func WithPartitions(n int) Option {
	return func(c *registryConfig) {
		c.partitions = n
	}
}

// WithListeners registers observers notified of register and unregister
// events. Delivery is best-effort and never blocks registry operations.
func WithListeners(listeners ...Listener) Option {
	return func(c *registryConfig) {
		c.listeners = append(c.listeners, listeners...)
	}
}

// WithMeta seeds a meta entry at Start.
func WithMeta(key, value any) Option {
	return func(c *registryConfig) {
		c.meta = append(c.meta, MetaEntry{Key: key, Value: value})
	}
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *registryConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpans sets the span manager used by Dispatch and Select.
// Default: no-op.
func WithSpans(s observability.SpanManager) Option {
	return func(c *registryConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// DispatchOption configures a single Dispatch call.
type DispatchOption func(*dispatchConfig)

type dispatchConfig struct {
	parallel bool
}

// WithParallel processes partitions concurrently. Dispatch still returns
// only after every callback has completed.
func WithParallel() DispatchOption {
	return func(c *dispatchConfig) {
		c.parallel = true
	}
}
