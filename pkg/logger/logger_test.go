package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextWithCorrelationID(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "test-id")
	if got := CorrelationIDFromContext(ctx); got != "test-id" {
		t.Fatalf("expected correlation ID %q, got %q", "test-id", got)
	}
}

func TestWithContextAddsCorrelationAndTicketFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	original := log
	log = zap.New(core)
	defer func() { log = original }()

	ctx := ContextWithCorrelationID(context.Background(), "context-id")
	ctx = ContextWithTicketID(ctx, "t1")

	WithContext(ctx).Info("test message")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["correlation_id"] != "context-id" {
		t.Fatalf("expected correlation_id %q, got %v", "context-id", fields["correlation_id"])
	}
	if fields["ticket_id"] != "t1" {
		t.Fatalf("expected ticket_id %q, got %v", "t1", fields["ticket_id"])
	}
}

func TestFromContextWithoutValuesReturnsBase(t *testing.T) {
	base := zap.NewNop()
	if got := FromContext(context.Background(), base); got != base {
		t.Fatalf("expected base logger to be returned unchanged")
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	original := log
	defer func() { log = original }()

	if err := Init(Options{Environment: "development", Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
