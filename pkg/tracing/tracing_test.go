package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracerDisabled(t *testing.T) {
	orig := newTraceExporter
	defer func() { newTraceExporter = orig }()
	newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		t.Fatal("exporter must not be created when tracing is disabled")
		return nil, nil
	}

	tp, tracer, err := InitTracer(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil || tracer == nil {
		t.Fatal("expected tracer provider")
	}
}

func TestInitTracerEnabledWithStubExporter(t *testing.T) {
	orig := newTraceExporter
	defer func() { newTraceExporter = orig }()

	stub := &stubExporter{}
	newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		stub.endpoint = endpoint
		return stub, nil
	}

	tp, tracer, err := InitTracer(context.Background(), Config{Enabled: true, Endpoint: "collector:4317"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracer == nil {
		t.Fatal("expected tracer")
	}
	if stub.endpoint != "collector:4317" {
		t.Fatalf("expected endpoint to be propagated, got %s", stub.endpoint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracerDefaultsEndpoint(t *testing.T) {
	orig := newTraceExporter
	defer func() { newTraceExporter = orig }()

	var got string
	newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		got = endpoint
		return nil, errors.New("dial failed")
	}

	if _, _, err := InitTracer(context.Background(), Config{Enabled: true}); err == nil {
		t.Fatal("expected exporter error")
	}
	if got != "localhost:4317" {
		t.Fatalf("expected default endpoint, got %s", got)
	}
}

type stubExporter struct {
	endpoint string
}

func (s *stubExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (s *stubExporter) Shutdown(ctx context.Context) error {
	return nil
}
