package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// setupTracer 设置测试用的 OpenTelemetry Tracer。
func setupTracer() (trace.Tracer, *sdktrace.TracerProvider) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	// 设置全局传播器（W3C Trace Context + Baggage）
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Tracer("test"), tp
}

// TestInjectTraceContext_WithSpan 测试有 Span 时正确注入 traceparent 头。
func TestInjectTraceContext_WithSpan(t *testing.T) {
	tracer, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := NewClient(10*time.Second, 0)

	ctx, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	req = req.WithContext(ctx)

	client.injectTraceContext(req)

	// traceparent 格式: version-trace_id-parent_id-trace_flags, 最短 55 字符
	traceparent := req.Header.Get("traceparent")
	if traceparent == "" {
		t.Error("expected traceparent header to be set, got empty")
	}
	if len(traceparent) < 55 {
		t.Errorf("traceparent format invalid: %s", traceparent)
	}
}

// TestInjectTraceContext_WithoutSpan 测试无 Span 时不注入追踪头。
func TestInjectTraceContext_WithoutSpan(t *testing.T) {
	_, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := NewClient(10*time.Second, 0)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	client.injectTraceContext(req)

	if traceparent := req.Header.Get("traceparent"); traceparent != "" {
		t.Errorf("expected no traceparent header, got: %s", traceparent)
	}
}

// TestDoRequest_TracingIntegration 测试 DoRequest 端到端追踪集成。
func TestDoRequest_TracingIntegration(t *testing.T) {
	tracer, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var receivedTraceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedTraceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	client := NewClient(10*time.Second, 0)

	ctx, span := tracer.Start(context.Background(), "test-client-request")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.DoRequest(req)
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if receivedTraceparent == "" {
		t.Error("downstream service did not receive traceparent header")
	}
}
