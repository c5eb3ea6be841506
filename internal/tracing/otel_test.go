package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func initRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	err := InitOpenTelemetry(context.Background(), Options{
		ServiceName: "drawerq-test",
		Processors:  []sdktrace.SpanProcessor{recorder},
	})
	if err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}
	t.Cleanup(func() { _ = ShutdownOpenTelemetry(context.Background()) })
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestStartSpanSetsTraceID(t *testing.T) {
	recorder := initRecorder(t)

	ctx := WithDrawer(context.Background(), "receive", "main:abc")
	ctx = WithClientID(ctx, "client-1")
	ctx, span := StartSpan(ctx, "drawerq/test", "drawer.open")
	span.End()

	if !span.SpanContext().IsValid() {
		t.Fatal("Expected a valid span context")
	}
	if GetTraceID(ctx) != span.SpanContext().TraceID().String() {
		t.Error("Trace ID was not propagated from the span")
	}

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("Expected 1 recorded span, got %d", len(ended))
	}
	attrs := ended[0].Attributes()
	for key, want := range map[string]string{
		"drawer.id":      "receive",
		"drawer.scope":   "main:abc",
		"gateway.client": "client-1",
	} {
		if got := attrValue(attrs, key); got != want {
			t.Errorf("Expected %s=%s, got %q", key, want, got)
		}
	}
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-fixed")
	ctx, span := StartSpan(ctx, "drawerq/test", "drawer.close")
	defer span.End()

	if GetTraceID(ctx) != "trace-fixed" {
		t.Errorf("Expected trace-fixed, got %s", GetTraceID(ctx))
	}
}

func TestFailSpan(t *testing.T) {
	recorder := initRecorder(t)

	_, clean := StartSpan(context.Background(), "drawerq/test", "scenario.run")
	FailSpan(clean, nil)
	clean.End()

	_, failed := StartSpan(context.Background(), "drawerq/test", "scenario.run")
	FailSpan(failed, errors.New("step 3: expected current \"drawer2\", got none"))
	failed.End()

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("Expected 2 recorded spans, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Unset {
		t.Errorf("Expected unset status, got %v", ended[0].Status().Code)
	}
	if ended[1].Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", ended[1].Status().Code)
	}
	if len(ended[1].Events()) == 0 {
		t.Error("Expected the error to be recorded as a span event")
	}
}

func TestInitOpenTelemetryReplacesProvider(t *testing.T) {
	first := initRecorder(t)
	second := initRecorder(t)

	_, span := StartSpan(context.Background(), "drawerq/test", "drawer.force")
	span.End()

	if len(first.Ended()) != 0 {
		t.Error("Replaced provider still received spans")
	}
	if len(second.Ended()) != 1 {
		t.Errorf("Expected 1 span on the new provider, got %d", len(second.Ended()))
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithDrawer(ctx, "receive", "main:abc")

	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("Drawer shown")

	out := buf.String()
	for _, want := range []string{`"traceId":"trace-123"`, `"drawerId":"receive"`, `"scope":"main:abc"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "clientId") {
		t.Error("Unexpected clientId field")
	}
}

func TestShutdownOpenTelemetry(t *testing.T) {
	if err := ShutdownOpenTelemetry(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
