// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing helpers, and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [Init] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pipeline metrics.
const meterName = "github.com/medvoice-ai/teachback"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// GenerateDuration tracks generative model call latency. Use with
	// attribute.String("stage", ...) to distinguish extraction, scoring,
	// question generation, and report composition.
	GenerateDuration metric.Float64Histogram

	// TranslateDuration tracks bulk translation latency.
	TranslateDuration metric.Float64Histogram

	// --- Counters ---

	// ExtractionTier counts which cascade tier produced each result. Use
	// with attributes:
	//   attribute.String("stage", ...), attribute.String("tier", ...)
	ExtractionTier metric.Int64Counter

	// TranslationCacheHits counts bulk translation cache hits.
	TranslationCacheHits metric.Int64Counter

	// TranslationCacheMisses counts bulk translation cache misses.
	TranslationCacheMisses metric.Int64Counter

	// ModelErrors counts external model failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ModelErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Decode and
// generative calls on full recordings run in the seconds range, so the upper
// buckets are wider than typical HTTP-service defaults.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscribeDuration, err = m.Float64Histogram("teachback.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerateDuration, err = m.Float64Histogram("teachback.generate.duration",
		metric.WithDescription("Latency of generative model calls by pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("teachback.translate.duration",
		metric.WithDescription("Latency of bulk translation calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ExtractionTier, err = m.Int64Counter("teachback.extraction.tier",
		metric.WithDescription("Cascade tier that produced each stage result."),
	); err != nil {
		return nil, err
	}
	if met.TranslationCacheHits, err = m.Int64Counter("teachback.translation.cache_hits",
		metric.WithDescription("Bulk translation cache hits."),
	); err != nil {
		return nil, err
	}
	if met.TranslationCacheMisses, err = m.Int64Counter("teachback.translation.cache_misses",
		metric.WithDescription("Bulk translation cache misses."),
	); err != nil {
		return nil, err
	}
	if met.ModelErrors, err = m.Int64Counter("teachback.model.errors",
		metric.WithDescription("External model failures by provider and kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTier records which cascade tier produced a stage result.
func (m *Metrics) RecordTier(ctx context.Context, stage, tier string) {
	m.ExtractionTier.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("tier", tier),
		),
	)
}

// RecordModelError records an external model failure.
func (m *Metrics) RecordModelError(ctx context.Context, provider, kind string) {
	m.ModelErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
