package tracing

import (
	"context"
	"fmt"

	"github.com/richxcame/support-chat/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTP span attributes
const (
	HTTPMethodKey = attribute.Key("http.method")
	HTTPURLKey    = attribute.Key("http.url")
	HTTPStatusKey = attribute.Key("http.status_code")
)

// Store span attributes
const (
	StoreSystemKey    = attribute.Key("store.system")
	StoreOperationKey = attribute.Key("store.operation")
	StoreKeyKey       = attribute.Key("store.key")
)

// TicketIDKey tags spans with the support ticket being worked on
const TicketIDKey = attribute.Key("support.ticket_id")

// TraceHTTPClient wraps an HTTP client call with tracing. fn receives the
// span context so it can propagate trace headers.
func TraceHTTPClient(ctx context.Context, tracerName, method, url string, fn func(context.Context) (int, error)) (int, error) {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("HTTP %s", method),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		HTTPMethodKey.String(method),
		HTTPURLKey.String(url),
	)
	span.SetAttributes(TicketAttributes(ctx)...)

	statusCode, err := fn(ctx)

	if statusCode > 0 {
		span.SetAttributes(HTTPStatusKey.Int(statusCode))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if statusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return statusCode, err
}

// TraceStoreOp wraps a key-value store operation with tracing. isMiss lets
// the caller exclude not-found results from error status.
func TraceStoreOp(ctx context.Context, tracerName, system, operation, key string, isMiss func(error) bool, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", system, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		StoreSystemKey.String(system),
		StoreOperationKey.String(operation),
		StoreKeyKey.String(key),
	)

	err := fn(ctx)
	if err != nil && (isMiss == nil || !isMiss(err)) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// TicketAttributes returns the ticket attribute for ctx, if it carries one
func TicketAttributes(ctx context.Context) []attribute.KeyValue {
	ticketID := logger.TicketIDFromContext(ctx)
	if ticketID == "" {
		return nil
	}
	return []attribute.KeyValue{TicketIDKey.String(ticketID)}
}
