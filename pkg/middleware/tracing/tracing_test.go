package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/movies/pkg/middleware/requestid"
	"github.com/nimburion/movies/pkg/server/router"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
)

func setup(t *testing.T) (*tracetest.SpanRecorder, *ginrouter.GinRouter) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prevProvider, prevPropagator := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})

	r := ginrouter.NewRouter()
	r.Use(requestid.RequestID(), Tracing(Config{ExcludedPathPrefixes: []string{"/health"}}))
	r.GET("/movies/:id", func(c router.Context) error {
		if !trace.SpanContextFromContext(c.Request().Context()).IsValid() {
			t.Error("expected span in handler context")
		}
		switch c.Param("id") {
		case "broken":
			return c.String(http.StatusInternalServerError, "boom")
		case "error":
			return errors.New("handler failed")
		}
		return c.String(http.StatusOK, "ok")
	})
	r.GET("/health", func(c router.Context) error { return c.String(http.StatusOK, "ok") })
	return recorder, r
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	recorder, r := setup(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/movies/42", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP GET /movies/:id" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if spans[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("expected server span")
	}
	if spans[0].Status().Code == codes.Error {
		t.Errorf("expected successful span")
	}
}

func TestTracing_ContinuesInboundTrace(t *testing.T) {
	recorder, r := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/movies/42", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := recorder.Ended()[0].SpanContext().TraceID().String()
	if got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected inbound trace ID, got %s", got)
	}
}

func TestTracing_FailuresMarkSpan(t *testing.T) {
	for _, path := range []string{"/movies/broken", "/movies/error"} {
		t.Run(path, func(t *testing.T) {
			recorder, r := setup(t)
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
			if recorder.Ended()[0].Status().Code != codes.Error {
				t.Errorf("expected error status for %s", path)
			}
		})
	}
}

func TestTracing_ExcludedPaths(t *testing.T) {
	recorder, r := setup(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(recorder.Ended()) != 0 {
		t.Errorf("expected no spans for excluded path")
	}
}
