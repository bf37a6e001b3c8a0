package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelHooks turns lifecycle events into OpenTelemetry spans, one per event,
// started and ended immediately since the engine's events are instants
// rather than long-lived operations. Adapted from the teacher's OTelEmitter
// (graph/emit/otel.go).
type OTelHooks struct {
	tracer trace.Tracer
}

// NewOTelHooks returns hooks that record spans on tracer.
func NewOTelHooks(tracer trace.Tracer) *OTelHooks {
	return &OTelHooks{tracer: tracer}
}

// Emit implements Hooks.
func (h *OTelHooks) Emit(e Event) {
	_, span := h.tracer.Start(context.Background(), string(e.Kind))
	defer span.End()

	span.SetAttributes(
		attribute.String("pipeline_id", e.PipelineID),
		attribute.String("node_id", e.NodeID),
	)
	for k, v := range e.Meta {
		if s, ok := v.(string); ok {
			span.SetAttributes(attribute.String(k, s))
		}
	}
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
}
