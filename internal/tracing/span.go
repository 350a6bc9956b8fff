package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on storage operation spans and on the exported resource.
const (
	AttrStorageKind = attribute.Key("storage.kind")
	AttrOp          = attribute.Key("storage.op")
	AttrContainer   = attribute.Key("storage.container")
	AttrObject      = attribute.Key("storage.object")
	AttrBytes       = attribute.Key("storage.bytes")
	AttrWorker      = attribute.Key("crankstore.worker")
)

// StartOperationSpan starts a client span for one storage operation.
// object may be empty for container operations.
func StartOperationSpan(ctx context.Context, tracer trace.Tracer, op, container, object string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "storage "+op,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		AttrOp.String(op),
		AttrContainer.String(container),
	)
	if object != "" {
		span.SetAttributes(AttrObject.String(object))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
