package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.TranscribeDuration == nil || m.GenerateDuration == nil || m.TranslateDuration == nil {
		t.Fatal("histogram instrument missing")
	}
	if m.ExtractionTier == nil || m.TranslationCacheHits == nil || m.TranslationCacheMisses == nil || m.ModelErrors == nil {
		t.Fatal("counter instrument missing")
	}

	// Recording helpers must not panic on a live provider.
	ctx := context.Background()
	m.RecordTier(ctx, "clinical", "rules")
	m.RecordModelError(ctx, "llm", "score")
	m.TranscribeDuration.Record(ctx, 0.25)
}

func TestLogger_NeverNil(t *testing.T) {
	t.Parallel()

	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}
}
