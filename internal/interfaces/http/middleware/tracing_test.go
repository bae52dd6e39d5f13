package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer sets up a test tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "test"}))
	router.GET("/sales", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sales", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_SpanAttributes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(RequestID(), Tracing(), SpanAttributes())
	router.POST("/api/v1/sales", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
	req.Header.Set(RequestIDKey, "req-42")
	req.Header.Set(HeaderTerminalID, "till-07")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/sales", spans[0].Name())

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "req-42", attrs["request_id"].AsString())
	assert.Equal(t, "till-07", attrs["terminal_id"].AsString())
}

func TestTracing_RejectsMalformedTerminalID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing(), SpanAttributes())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"till 07", "<script>", strings.Repeat("a", MaxTerminalIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderTerminalID, id)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	for _, span := range sr.Ended() {
		_, ok := spanAttrs(span)["terminal_id"]
		assert.False(t, ok)
	}
}

func TestGetRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("context value wins", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDKey, "from-header")
		c.Set(RequestIDContextKey, "from-context")
		assert.Equal(t, "from-context", getRequestID(c))
	})

	t.Run("header is truncated", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDKey, strings.Repeat("r", MaxRequestIDLength+10))
		assert.Len(t, getRequestID(c), MaxRequestIDLength)
	})
}

func TestSpanErrorMarker(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status      int
		wantError   bool
		description string
	}{
		{http.StatusOK, false, ""},
		{http.StatusCreated, false, ""},
		{http.StatusBadRequest, true, "Client Error"},
		{http.StatusNotFound, true, "Not Found"},
		{http.StatusConflict, true, "Conflict"},
		{http.StatusUnprocessableEntity, true, "Unprocessable Entity"},
		{http.StatusServiceUnavailable, true, ""},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := setupTestTracer(t)
			router := gin.New()
			router.Use(Tracing(), SpanErrorMarker())
			router.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			status := spans[0].Status()
			if !tt.wantError {
				assert.NotEqual(t, codes.Error, status.Code)
				return
			}
			assert.Equal(t, codes.Error, status.Code)
			if tt.description != "" {
				assert.Equal(t, tt.description, status.Description)
			}
		})
	}
}
