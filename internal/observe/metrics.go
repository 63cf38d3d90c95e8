// Package observe provides the observability primitives shared by scribe's
// packages: OpenTelemetry metrics, tracing and trace-aware structured
// logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge so the CLI can serve them on a
// /metrics endpoint during long batch runs. [DefaultMetrics] returns a
// package-level instance bound to the global provider; tests should use
// [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scribe metrics.
const meterName = "github.com/MrWong99/scribe"

// Metrics holds all OpenTelemetry instruments for the application. All fields
// are safe for concurrent use.
type Metrics struct {
	// LLMDuration tracks reasoning-model completion latency.
	LLMDuration metric.Float64Histogram

	// ToolDuration tracks tool execution latency.
	ToolDuration metric.Float64Histogram

	// EnhanceIterations records how many tool turns each transcript took.
	EnhanceIterations metric.Int64Histogram

	// ToolCalls counts tool invocations by "tool" and "status".
	ToolCalls metric.Int64Counter

	// ProviderErrors counts failed completions by "provider".
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by
	// "provider" and the new "state".
	BreakerTransitions metric.Int64Counter

	// Clarifications counts user questions by "kind" and "outcome".
	Clarifications metric.Int64Counter

	// ContextChanges counts durable context writes by "entity_type" and
	// "action".
	ContextChanges metric.Int64Counter

	// EnhanceRuns counts processed transcripts by "outcome"
	// (enhanced, forced, fallback).
	EnhanceRuns metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds. Reasoning calls take
// seconds, tool calls milliseconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60,
}

var iterationBuckets = []float64{0, 1, 2, 3, 5, 8, 12, 15}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("scribe.llm.duration",
		metric.WithDescription("Latency of reasoning-model completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("scribe.tool.duration",
		metric.WithDescription("Latency of tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnhanceIterations, err = m.Int64Histogram("scribe.enhance.iterations",
		metric.WithDescription("Tool turns taken per transcript."),
		metric.WithExplicitBucketBoundaries(iterationBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ToolCalls, err = m.Int64Counter("scribe.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("scribe.provider.errors",
		metric.WithDescription("Total failed completions by provider."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("scribe.provider.breaker_transitions",
		metric.WithDescription("Total circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}
	if met.Clarifications, err = m.Int64Counter("scribe.clarifications",
		metric.WithDescription("Total clarification requests by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ContextChanges, err = m.Int64Counter("scribe.context.changes",
		metric.WithDescription("Total durable context store writes by entity type and action."),
	); err != nil {
		return nil, err
	}
	if met.EnhanceRuns, err = m.Int64Counter("scribe.enhance.runs",
		metric.WithDescription("Total processed transcripts by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	attrs := metric.WithAttributes(Attr("tool", tool), Attr("status", status))
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, seconds, metric.WithAttributes(Attr("tool", tool)))
}

// RecordProviderError records a failed completion.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider)))
}

// RecordBreakerTransition records a provider's breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("state", state)))
}

// RecordClarification records a clarification request and how it ended
// (answered, unanswered, error).
func (m *Metrics) RecordClarification(ctx context.Context, kind, outcome string) {
	m.Clarifications.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind), Attr("outcome", outcome)))
}

// RecordContextChange records a durable context write.
func (m *Metrics) RecordContextChange(ctx context.Context, entityType, action string) {
	m.ContextChanges.Add(ctx, 1, metric.WithAttributes(Attr("entity_type", entityType), Attr("action", action)))
}

// RecordEnhanceRun records the outcome of one transcript.
func (m *Metrics) RecordEnhanceRun(ctx context.Context, outcome string, iterations int) {
	m.EnhanceRuns.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
	m.EnhanceIterations.Record(ctx, int64(iterations))
}
