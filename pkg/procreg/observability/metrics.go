package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records registry metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRegister records a registration attempt and whether it
	// conflicted with an existing unique-mode entry.
	RecordRegister(ctx context.Context, registry string, conflict bool)

	// RecordUnregister records explicitly removed entries.
	RecordUnregister(ctx context.Context, registry string, removed int)

	// RecordCleanup records entries purged after an owner exit.
	RecordCleanup(ctx context.Context, registry string, removed int)

	// RecordDispatch records a dispatch call with its duration and the
	// number of callback invocations.
	RecordDispatch(ctx context.Context, registry string, calls int, duration time.Duration)

	// RecordLockWait records how long a caller waited to acquire a lock.
	RecordLockWait(ctx context.Context, registry string, wait time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	registers       metric.Int64Counter
	conflicts       metric.Int64Counter
	unregistered    metric.Int64Counter
	purged          metric.Int64Counter
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	lockWait        metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("procreg")

	registers, err := meter.Int64Counter("procreg.registrations",
		metric.WithDescription("Number of successful registrations"),
	)
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter("procreg.conflicts",
		metric.WithDescription("Number of unique-mode registration conflicts"),
	)
	if err != nil {
		return nil, err
	}

	unregistered, err := meter.Int64Counter("procreg.unregistrations",
		metric.WithDescription("Number of explicitly unregistered entries"),
	)
	if err != nil {
		return nil, err
	}

	purged, err := meter.Int64Counter("procreg.purged",
		metric.WithDescription("Number of entries purged after owner exit"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("procreg.dispatches",
		metric.WithDescription("Number of dispatch calls"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("procreg.dispatch.latency_ms",
		metric.WithDescription("Dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	lockWait, err := meter.Float64Histogram("procreg.lock.wait_ms",
		metric.WithDescription("Lock acquisition wait in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		registers:       registers,
		conflicts:       conflicts,
		unregistered:    unregistered,
		purged:          purged,
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		lockWait:        lockWait,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		return NoopMetrics{}
	}
	return m
}

func registryAttr(registry string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("registry", registry))
}

// RecordRegister implements MetricsRecorder.
func (m *otelMetrics) RecordRegister(ctx context.Context, registry string, conflict bool) {
	if conflict {
		m.conflicts.Add(ctx, 1, registryAttr(registry))
		return
	}
	m.registers.Add(ctx, 1, registryAttr(registry))
}

// RecordUnregister implements MetricsRecorder.
func (m *otelMetrics) RecordUnregister(ctx context.Context, registry string, removed int) {
	m.unregistered.Add(ctx, int64(removed), registryAttr(registry))
}

// RecordCleanup implements MetricsRecorder.
func (m *otelMetrics) RecordCleanup(ctx context.Context, registry string, removed int) {
	m.purged.Add(ctx, int64(removed), registryAttr(registry))
}

// RecordDispatch implements MetricsRecorder.
func (m *otelMetrics) RecordDispatch(ctx context.Context, registry string, calls int, duration time.Duration) {
	m.dispatches.Add(ctx, 1, registryAttr(registry))
	m.dispatchLatency.Record(ctx, float64(duration.Microseconds())/1000.0,
		registryAttr(registry),
		metric.WithAttributes(attribute.Int("calls", calls)),
	)
}

// RecordLockWait implements MetricsRecorder.
func (m *otelMetrics) RecordLockWait(ctx context.Context, registry string, wait time.Duration) {
	m.lockWait.Record(ctx, float64(wait.Microseconds())/1000.0, registryAttr(registry))
}
