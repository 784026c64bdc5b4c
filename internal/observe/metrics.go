// Package observe provides application-wide observability primitives for
// Sotto: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all Sotto metrics.
const meterName = "github.com/sotto-ai/sotto"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks transcription latency per audio window.
	STTDuration metric.Float64Histogram

	// RetrievalDuration tracks passage retrieval latency per question.
	RetrievalDuration metric.Float64Histogram

	// GenerationDuration tracks answer generation latency per question.
	GenerationDuration metric.Float64Histogram

	// --- Counters ---

	// WindowsProcessed counts audio windows by outcome. Use with attribute:
	//   attribute.String("outcome", "transcribed"|"silent"|"empty")
	WindowsProcessed metric.Int64Counter

	// WindowsDropped counts capture windows discarded because the pipeline
	// could not keep up.
	WindowsDropped metric.Int64Counter

	// QuestionsDetected counts detected interview questions.
	QuestionsDetected metric.Int64Counter

	// AnswersGenerated counts generated answers. Use with attribute:
	//   attribute.String("context", "documents"|"fallback")
	AnswersGenerated metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Distribution of answer quality ---

	// AnswerConfidence tracks the confidence score distribution of
	// generated answers.
	AnswerConfidence metric.Float64Histogram

	// --- Gauges ---

	// AudioLevel tracks the RMS level of the most recent capture frame.
	AudioLevel metric.Float64Gauge

	// ActiveSessions tracks whether an interview session is running.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// local STT and LLM inference latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20,
}

// confidenceBuckets defines bucket boundaries for the [0, 1] confidence score.
var confidenceBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("sotto.stt.duration",
		metric.WithDescription("Latency of audio window transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrievalDuration, err = m.Float64Histogram("sotto.retrieval.duration",
		metric.WithDescription("Latency of passage retrieval per question."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("sotto.generation.duration",
		metric.WithDescription("Latency of answer generation per question."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WindowsProcessed, err = m.Int64Counter("sotto.windows.processed",
		metric.WithDescription("Total audio windows processed by outcome."),
	); err != nil {
		return nil, err
	}
	if met.WindowsDropped, err = m.Int64Counter("sotto.windows.dropped",
		metric.WithDescription("Total capture windows discarded under backpressure."),
	); err != nil {
		return nil, err
	}
	if met.QuestionsDetected, err = m.Int64Counter("sotto.questions.detected",
		metric.WithDescription("Total interview questions detected."),
	); err != nil {
		return nil, err
	}
	if met.AnswersGenerated, err = m.Int64Counter("sotto.answers.generated",
		metric.WithDescription("Total answers generated by context source."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sotto.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Confidence distribution.
	if met.AnswerConfidence, err = m.Float64Histogram("sotto.answer.confidence",
		metric.WithDescription("Confidence score distribution of generated answers."),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.AudioLevel, err = m.Float64Gauge("sotto.audio.level",
		metric.WithDescription("RMS level of the most recent capture frame."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("sotto.active_sessions",
		metric.WithDescription("Number of running interview sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sotto.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordWindow records a processed audio window with its outcome.
func (m *Metrics) RecordWindow(ctx context.Context, outcome string) {
	m.WindowsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordAnswer records a generated answer's confidence alongside whether it
// was grounded in document context.
func (m *Metrics) RecordAnswer(ctx context.Context, confidence float64, contextUsed bool) {
	source := "fallback"
	if contextUsed {
		source = "documents"
	}
	m.AnswersGenerated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("context", source)),
	)
	m.AnswerConfidence.Record(ctx, confidence)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
