// Package observe provides application-wide observability primitives for
// Intervo: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Intervo metrics.
const meterName = "github.com/intervo-ai/intervo"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per backend interaction ---

	// SessionLoadDuration tracks interview-session fetch latency.
	SessionLoadDuration metric.Float64Histogram

	// SaveDuration tracks per-question answer save latency.
	SaveDuration metric.Float64Histogram

	// SubmitDuration tracks final session submission latency.
	SubmitDuration metric.Float64Histogram

	// --- Counters ---

	// SessionsStarted counts sessions that loaded successfully.
	SessionsStarted metric.Int64Counter

	// AnswerSaves counts per-question save attempts. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	AnswerSaves metric.Int64Counter

	// Submissions counts final submissions. Use with attributes:
	//   attribute.String("status", ...), attribute.String("trigger", ...)
	Submissions metric.Int64Counter

	// TimerExpiries counts sessions force-submitted by the countdown.
	TimerExpiries metric.Int64Counter

	// SummaryPolls counts scoring-summary poll attempts. Use with attribute:
	//   attribute.String("status", ...)
	SummaryPolls metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveCaptures tracks the number of held capture device handles.
	ActiveCaptures metric.Int64UpDownCounter

	// FeedClients tracks the number of connected web feed subscribers.
	FeedClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// backend round trips, including multipart submissions on slow uplinks.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SessionLoadDuration, err = m.Float64Histogram("intervo.session.load.duration",
		metric.WithDescription("Latency of interview-session fetches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SaveDuration, err = m.Float64Histogram("intervo.answer.save.duration",
		metric.WithDescription("Latency of per-question answer saves."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SubmitDuration, err = m.Float64Histogram("intervo.session.submit.duration",
		metric.WithDescription("Latency of final session submissions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SessionsStarted, err = m.Int64Counter("intervo.sessions.started",
		metric.WithDescription("Total sessions loaded successfully."),
	); err != nil {
		return nil, err
	}
	if met.AnswerSaves, err = m.Int64Counter("intervo.answer.saves",
		metric.WithDescription("Total per-question save attempts by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Submissions, err = m.Int64Counter("intervo.session.submissions",
		metric.WithDescription("Total final submissions by status and trigger."),
	); err != nil {
		return nil, err
	}
	if met.TimerExpiries, err = m.Int64Counter("intervo.timer.expiries",
		metric.WithDescription("Total sessions force-submitted by timer expiry."),
	); err != nil {
		return nil, err
	}
	if met.SummaryPolls, err = m.Int64Counter("intervo.summary.polls",
		metric.WithDescription("Total scoring-summary poll attempts by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("intervo.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCaptures, err = m.Int64UpDownCounter("intervo.active_captures",
		metric.WithDescription("Number of held capture device handles."),
	); err != nil {
		return nil, err
	}
	if met.FeedClients, err = m.Int64UpDownCounter("intervo.feed_clients",
		metric.WithDescription("Number of connected web feed subscribers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("intervo.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordSummaryPoll is a convenience method that records a summary poll
// counter increment with the standard status attribute.
func (m *Metrics) RecordSummaryPoll(ctx context.Context, status string) {
	m.SummaryPolls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
