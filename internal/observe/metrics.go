// Package observe provides application-wide observability primitives for
// captionrelay: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge as the metric reader; no /metrics
// HTTP route is mounted by this module. A package-level default
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

// meterName is the instrumentation scope name used for all captionrelay
// metrics.
const meterName = "github.com/oakfield-labs/captionrelay"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TranslationDuration tracks LLM translation-dispatch latency.
	TranslationDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// TranscriptsFiltered counts windows whose recognized text was rejected
	// by the filter & dedup gate. Use with attribute:
	//   attribute.String("reason", ...) — "blocklist", "no_alnum", "repeat"
	TranscriptsFiltered metric.Int64Counter

	// TranscriptsAccepted counts transcripts accepted into a speaker's
	// sentence assembler.
	TranscriptsAccepted metric.Int64Counter

	// WindowsDropped counts audio windows dropped before STT, by reason.
	// Use with attribute: attribute.String("reason", ...) — "muted", "vad".
	WindowsDropped metric.Int64Counter

	// CaptionsPublished counts outbound caption/translation records
	// published. Use with attribute: attribute.String("type", ...) —
	// "transcription" or "translation".
	CaptionsPublished metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRooms tracks the number of rooms the agent currently has a
	// live session in.
	ActiveRooms metric.Int64UpDownCounter

	// ActiveSpeakerPipelines tracks the number of currently running
	// per-speaker pipelines across all rooms.
	ActiveSpeakerPipelines metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for soft-realtime captioning latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("captionrelay.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("captionrelay.translation.duration",
		metric.WithDescription("Latency of translation-dispatch LLM calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("captionrelay.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptsFiltered, err = m.Int64Counter("captionrelay.transcripts.filtered",
		metric.WithDescription("Total transcripts rejected by the filter & dedup gate, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptsAccepted, err = m.Int64Counter("captionrelay.transcripts.accepted",
		metric.WithDescription("Total transcripts accepted into a sentence assembler."),
	); err != nil {
		return nil, err
	}
	if met.WindowsDropped, err = m.Int64Counter("captionrelay.windows.dropped",
		metric.WithDescription("Total audio windows dropped before STT, by reason."),
	); err != nil {
		return nil, err
	}
	if met.CaptionsPublished, err = m.Int64Counter("captionrelay.captions.published",
		metric.WithDescription("Total outbound caption/translation records published, by type."),
	); err != nil {
		return nil, err
	}

	if met.ProviderErrors, err = m.Int64Counter("captionrelay.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRooms, err = m.Int64UpDownCounter("captionrelay.active_rooms",
		metric.WithDescription("Number of rooms with a live captioning session."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSpeakerPipelines, err = m.Int64UpDownCounter("captionrelay.active_speaker_pipelines",
		metric.WithDescription("Number of currently running per-speaker pipelines across all rooms."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("captionrelay.http.request.duration",
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordFiltered is a convenience method that records a filtered-transcript
// counter increment with the rejection reason.
func (m *Metrics) RecordFiltered(ctx context.Context, reason string) {
	m.TranscriptsFiltered.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordWindowDropped is a convenience method that records a dropped-window
// counter increment with the drop reason.
func (m *Metrics) RecordWindowDropped(ctx context.Context, reason string) {
	m.WindowsDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordCaptionPublished is a convenience method that records a published
// caption/translation record counter increment.
func (m *Metrics) RecordCaptionPublished(ctx context.Context, recordType string) {
	m.CaptionsPublished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", recordType)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
