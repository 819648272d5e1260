package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
		trace.WithSampler(trace.AlwaysSample()),
	)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return exporter
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing(t *testing.T) {
	exporter := installRecorder(t)

	handler := CorrelationID(testLogger())(Tracing(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/event/42/edit", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "GET /event/{id}/edit", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	method, ok := spanAttr(span.Attributes, "http.method")
	require.True(t, ok)
	assert.Equal(t, "GET", method.AsString())

	route, ok := spanAttr(span.Attributes, "http.route")
	require.True(t, ok)
	assert.Equal(t, "/event/{id}/edit", route.AsString())

	status, ok := spanAttr(span.Attributes, "http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(200), status.AsInt64())

	requestID, ok := spanAttr(span.Attributes, "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-1", requestID.AsString())
}

func TestTracingStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   codes.Code
	}{
		{"not found is not an error", http.StatusNotFound, codes.Ok},
		{"forbidden is not an error", http.StatusForbidden, codes.Ok},
		{"server error", http.StatusInternalServerError, codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := installRecorder(t)
			handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/event/7/delete", nil))

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.want, spans[0].Status.Code)
			status, _ := spanAttr(spans[0].Attributes, "http.status_code")
			assert.Equal(t, int64(tt.status), status.AsInt64())
		})
	}
}

func TestSchemeFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "http", schemeFromRequest(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https", schemeFromRequest(req))
}
