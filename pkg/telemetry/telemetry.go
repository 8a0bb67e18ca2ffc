// ABOUTME: Core telemetry abstraction interface over OpenTelemetry for nvpersist instrumentation
// ABOUTME: Provides metric creation, tracing, and lifecycle management with optional no-op implementations

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides the core abstraction over OpenTelemetry for nvpersist components.
// Components use this interface to record metrics and spans without depending directly on OpenTelemetry.
type Telemetry interface {
	// RecordHistogram records a histogram value with optional attributes.
	RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)

	// RecordCounter records a counter increment with optional attributes.
	RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue)

	// StartSpan creates a new tracing span with the given name and attributes.
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// Shutdown gracefully shuts down all telemetry providers and exports remaining data.
	Shutdown(ctx context.Context) error
}

// NoopTelemetry provides a no-operation implementation of Telemetry for testing or disabled scenarios.
type NoopTelemetry struct{}

// NewNoop creates a new no-operation telemetry instance.
func NewNoop() Telemetry {
	return &NoopTelemetry{}
}

// RecordHistogram is a no-op.
func (n *NoopTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	// No-op
}

// RecordCounter is a no-op.
func (n *NoopTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	// No-op
}

// StartSpan returns the original context and a no-op span.
func (n *NoopTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// Shutdown is a no-op.
func (n *NoopTelemetry) Shutdown(ctx context.Context) error {
	return nil
}

// Common telemetry utilities

// RecordDuration is a helper function to record operation duration in a histogram.
func RecordDuration(ctx context.Context, tel Telemetry, name string, start time.Time, attrs ...attribute.KeyValue) {
	duration := time.Since(start).Seconds()
	tel.RecordHistogram(ctx, name, duration, attrs...)
}

// RecordBytes is a helper function to record byte counts in a counter.
func RecordBytes(ctx context.Context, tel Telemetry, name string, bytes int64, attrs ...attribute.KeyValue) {
	tel.RecordCounter(ctx, name, bytes, attrs...)
}

// Attribute keys used by pkg/persist when tagging counters, histograms,
// and spans. Every key here is attached to a real RecordCounter,
// RecordHistogram, or StartSpan call in pkg/persist — there is no
// attribute declared here that nothing ever sets.
const (
	// AttrOperationType tags which Store operation (init/save/load/...)
	// a metric belongs to.
	AttrOperationType = "operation.type"

	// AttrComponent tags which package recorded the metric.
	AttrComponent = "component"

	// AttrResult tags the outcome of an operation: one of the Value*
	// constants below.
	AttrResult = "result"

	// AttrBlockIndex tags which ring block a save or erase touched.
	AttrBlockIndex = "block.index"

	// AttrErrorType tags a failure by the operation that triggered it:
	// "read", "write", or "erase" for a backend failure, "convert" for a
	// failed legacy-payload conversion.
	AttrErrorType = "error.type"
)

// Operation-type attribute values, one per pkg/persist entry point.
const (
	OpTypeInit       = "init"
	OpTypeLoad       = "load"
	OpTypeLoadLegacy = "load_legacy"
	OpTypeSave       = "save"
)

// Result attribute values.
const (
	ValueSuccess       = "success"
	ValueSuccessLegacy = "success_legacy"
	ValueSuppressed    = "suppressed"
	ValueNoData        = "no_data"
	ValueFail          = "fail"
)

// Component attribute values. pkg/persist is the only package that holds
// a Telemetry and records spans/counters with it today; geometry and
// memory are pure data-structure libraries with no request-scoped
// operation to attach a span to.
const (
	ComponentPersist = "persist"
)
