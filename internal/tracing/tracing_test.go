package tracing_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/crankstore/internal/config"
	"github.com/torosent/crankstore/internal/tracing"
)

func newRecordingTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp.Tracer("storage-test")
}

func TestInit(t *testing.T) {
	off := false
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		env           string
		wantErr       string
		wantEnabled   bool
		wantPropagate bool
	}{
		{name: "no endpoint", cfg: config.TracingConfig{SampleRate: 1}},
		{
			name:          "grpc",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", Protocol: "grpc", Insecure: true, SampleRate: 1},
			wantEnabled:   true,
			wantPropagate: true,
		},
		{
			name:          "http",
			cfg:           config.TracingConfig{Endpoint: "localhost:4318", Protocol: "HTTP", Insecure: true, SampleRate: 0.5},
			wantEnabled:   true,
			wantPropagate: true,
		},
		{
			name:          "endpoint from environment",
			cfg:           config.TracingConfig{Insecure: true, SampleRate: 1},
			env:           "localhost:4317",
			wantEnabled:   true,
			wantPropagate: true,
		},
		{
			name:        "propagation disabled",
			cfg:         config.TracingConfig{Endpoint: "localhost:4317", Insecure: true, SampleRate: 1, Propagate: &off},
			wantEnabled: true,
		},
		{
			name:    "unsupported protocol",
			cfg:     config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift", SampleRate: 1},
			wantErr: "unsupported OTLP protocol",
		},
		{
			name:    "negative sample rate",
			cfg:     config.TracingConfig{Endpoint: "localhost:4317", SampleRate: -0.1},
			wantErr: "sample_rate",
		},
		{
			name:    "sample rate above one",
			cfg:     config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.5},
			wantErr: "sample_rate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tt.env)
			p, err := tracing.Init(context.Background(), tt.cfg, tracing.AttrStorageKind.String("memory"))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Init() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

			if got := p.Enabled(); got != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", got, tt.wantEnabled)
			}
			if got := p.ShouldPropagate(); got != tt.wantPropagate {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.wantPropagate)
			}
			if p.Tracer() == nil {
				t.Error("Tracer() = nil")
			}
		})
	}
}

func TestDisabledProvider(t *testing.T) {
	for name, p := range map[string]*tracing.Provider{"nil": nil, "zero": {}} {
		t.Run(name, func(t *testing.T) {
			if p.Enabled() || p.ShouldPropagate() {
				t.Error("disabled provider reports enabled")
			}
			if err := p.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
			_, span := p.Tracer().Start(context.Background(), "storage read")
			if span.SpanContext().IsValid() {
				t.Error("no-op tracer produced a valid span context")
			}
			span.End()
		})
	}
}

func TestStartOperationSpan(t *testing.T) {
	exporter, tracer := newRecordingTracer(t)

	tests := []struct {
		name       string
		op         string
		container  string
		object     string
		wantName   string
		wantObject bool
	}{
		{"object read", "read", "bench-c1", "bench-o7", "storage read", true},
		{"object update", "update", "bench-c2", "bench-o1", "storage update", true},
		{"container create", "init", "bench-c1", "", "storage init", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()
			_, span := tracing.StartOperationSpan(context.Background(), tracer, tt.op, tt.container, tt.object)
			span.End()

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Name != tt.wantName {
				t.Errorf("span name = %q, want %q", spans[0].Name, tt.wantName)
			}
			if spans[0].SpanKind != trace.SpanKindClient {
				t.Errorf("span kind = %v, want client", spans[0].SpanKind)
			}
			attrs := map[string]string{}
			for _, kv := range spans[0].Attributes {
				attrs[string(kv.Key)] = kv.Value.AsString()
			}
			if attrs[string(tracing.AttrOp)] != tt.op {
				t.Errorf("%s = %q, want %q", tracing.AttrOp, attrs[string(tracing.AttrOp)], tt.op)
			}
			if attrs[string(tracing.AttrContainer)] != tt.container {
				t.Errorf("%s = %q, want %q", tracing.AttrContainer, attrs[string(tracing.AttrContainer)], tt.container)
			}
			if _, ok := attrs[string(tracing.AttrObject)]; ok != tt.wantObject {
				t.Errorf("%s present = %v, want %v", tracing.AttrObject, ok, tt.wantObject)
			}
		})
	}
}

func TestEndSpan(t *testing.T) {
	exporter, tracer := newRecordingTracer(t)

	tests := []struct {
		name      string
		err       error
		wantCode  codes.Code
		wantBytes int64
	}{
		{"success with bytes", nil, codes.Ok, 4096},
		{"failure", errors.New("503 Service Unavailable"), codes.Error, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()
			_, span := tracing.StartOperationSpan(context.Background(), tracer, "read", "c", "o")
			tracing.EndSpan(span, tt.err, tracing.AttrBytes.Int64(tt.wantBytes))

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Status.Code != tt.wantCode {
				t.Errorf("status = %v, want %v", spans[0].Status.Code, tt.wantCode)
			}
			var bytes int64 = -1
			for _, kv := range spans[0].Attributes {
				if kv.Key == tracing.AttrBytes {
					bytes = kv.Value.AsInt64()
				}
			}
			if bytes != tt.wantBytes {
				t.Errorf("%s = %d, want %d", tracing.AttrBytes, bytes, tt.wantBytes)
			}
			if tt.err != nil && len(spans[0].Events) == 0 {
				t.Error("error was not recorded as a span event")
			}
		})
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := newRecordingTracer(t)

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)
	if got := headers.Get("Traceparent"); got != "" {
		t.Errorf("traceparent without a span = %q, want empty", got)
	}

	ctx, span := tracer.Start(context.Background(), "storage write")
	defer span.End()
	tracing.InjectHTTPHeaders(ctx, headers)

	got := headers.Get("Traceparent")
	if !strings.Contains(got, span.SpanContext().TraceID().String()) {
		t.Errorf("traceparent = %q, want trace id %s", got, span.SpanContext().TraceID())
	}
}
