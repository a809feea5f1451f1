package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/Keksclan/minutodash/contextx"
)

// newTestConfig returns a Config backed by an in-memory span recorder.
func newTestConfig(t *testing.T) (*Config, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return &Config{
		TracerProvider: tp,
		Propagators:    propagation.TraceContext{},
	}, rec
}

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestTransport_CreatesClientSpanAndInjects(t *testing.T) {
	cfg, rec := newTestConfig(t)

	var gotParent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParent = r.Header.Get("traceparent")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	hc := &http.Client{Transport: Transport(cfg, nil)}
	ctx := contextx.WithFeed(t.Context(), "cisa_kev")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if gotParent == "" {
		t.Fatal("traceparent header was not injected")
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "fetch cisa_kev" {
		t.Fatalf("span name = %q, want %q", span.Name(), "fetch cisa_kev")
	}
	if span.SpanKind() != trace.SpanKindClient {
		t.Fatalf("expected SpanKindClient, got %v", span.SpanKind())
	}
	assertAttr(t, span.Attributes(), "http.request.method", "GET")
	assertIntAttr(t, span.Attributes(), "http.response.status_code", 200)
}

func TestTransport_NilConfigPassthrough(t *testing.T) {
	next := http.DefaultTransport
	if got := Transport(nil, next); got != next {
		t.Fatal("expected the wrapped transport to be returned unchanged")
	}
}

func TestMiddleware_ServerSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/docker-status", nil)
	req.Header.Set("traceparent", traceparent)
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /api/docker-status" {
		t.Fatalf("span name = %q", span.Name())
	}
	if span.SpanContext().TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace context not extracted; traceID = %s", span.SpanContext().TraceID())
	}
	if span.Status().Code != codes.Error {
		t.Fatalf("expected Error status for 502, got %v", span.Status().Code)
	}
}

func TestUnaryInterceptor_CreatesSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := UnaryServerInterceptor(cfg)

	md := metadata.Pairs("traceparent", traceparent)
	ctx := metadata.NewIncomingContext(t.Context(), md)
	info := &grpc.UnaryServerInfo{FullMethod: "/minutodash.Health/Check"}

	resp, err := ic(ctx, "req", info, func(_ context.Context, _ any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("got (%v, %v), want (ok, nil)", resp, err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.SpanKind() != trace.SpanKindServer {
		t.Fatalf("expected SpanKindServer, got %v", span.SpanKind())
	}
	assertAttr(t, span.Attributes(), "rpc.service", "minutodash.Health")
	assertAttr(t, span.Attributes(), "rpc.method", "Check")
	assertAttr(t, span.Attributes(), "rpc.grpc.status_code", "OK")
	if span.SpanContext().TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace context not extracted")
	}
}

func TestUnaryInterceptor_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := UnaryServerInterceptor(cfg)

	_, err := ic(t.Context(), "req", &grpc.UnaryServerInfo{FullMethod: "/svc/Method"},
		func(_ context.Context, _ any) (any, error) {
			return nil, grpcStatus.Error(grpcCodes.Unavailable, "down")
		})
	if err == nil {
		t.Fatal("expected error")
	}
	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %d spans", len(spans))
	}
	assertAttr(t, spans[0].Attributes(), "rpc.grpc.status_code", "Unavailable")
}

func TestUnaryInterceptor_NilConfig_Passthrough(t *testing.T) {
	ic := UnaryServerInterceptor(nil)
	resp, err := ic(t.Context(), "hello", &grpc.UnaryServerInfo{FullMethod: "/svc/Method"},
		func(_ context.Context, req any) (any, error) { return req, nil })
	if err != nil || resp != "hello" {
		t.Fatalf("got (%v, %v), want (hello, nil)", resp, err)
	}
}

func TestSplitFullMethod(t *testing.T) {
	tests := []struct {
		input   string
		service string
		method  string
	}{
		{"/minutodash.Health/Check", "minutodash.Health", "Check"},
		{"/service/method", "service", "method"},
		{"noSlash", "noSlash", ""},
	}
	for _, tt := range tests {
		svc, meth := splitFullMethod(tt.input)
		if svc != tt.service || meth != tt.method {
			t.Errorf("splitFullMethod(%q) = (%q, %q), want (%q, %q)", tt.input, svc, meth, tt.service, tt.method)
		}
	}
}

func assertAttr(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if a.Value.AsString() != want {
				t.Errorf("attribute %q = %q, want %q", key, a.Value.AsString(), want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found", key)
}

func assertIntAttr(t *testing.T, attrs []attribute.KeyValue, key string, want int64) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if a.Value.AsInt64() != want {
				t.Errorf("attribute %q = %d, want %d", key, a.Value.AsInt64(), want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found", key)
}
