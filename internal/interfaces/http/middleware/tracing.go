// Package middleware provides the gin middleware chain of the PharmacyOS API.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength bounds request IDs copied from headers into spans.
	MaxRequestIDLength = 128
	// MaxTerminalIDLength bounds point-of-sale terminal IDs.
	MaxTerminalIDLength = 64

	// HeaderTerminalID identifies the till a request comes from
	HeaderTerminalID = "X-Terminal-ID"
)

// terminalIDPattern keeps arbitrary header content out of trace attributes.
var terminalIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "pharmaos-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig starts the otelgin server span. Span names follow
// otelgin: "METHOD route_pattern", for example "POST /api/v1/sales".
// SpanAttributes and SpanErrorMarker must follow it in the chain, since
// otelgin ends the span before its own handler returns.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes tags the request span with the request ID and, when the
// till sent a well-formed one, the terminal ID.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := getRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if id := getTerminalID(c); id != "" {
				span.SetAttributes(attribute.String("terminal_id", id))
			}
		}
		c.Next()
	}
}

// getRequestID prefers the ID set by the RequestID middleware and falls back
// to a truncated header value.
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDContextKey); exists {
		if id, ok := requestID.(string); ok && id != "" {
			return id
		}
	}

	headerID := c.GetHeader(RequestIDKey)
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// getTerminalID returns the X-Terminal-ID header when it is well formed.
func getTerminalID(c *gin.Context) string {
	id := c.GetHeader(HeaderTerminalID)
	if id == "" || len(id) > MaxTerminalIDLength || !terminalIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// spanStatusTexts are the client errors a sale terminal distinguishes; other
// 4xx responses collapse to "Client Error".
var spanStatusTexts = map[int]bool{
	http.StatusNotFound:            true,
	http.StatusConflict:            true,
	http.StatusUnprocessableEntity: true,
}

// SpanErrorMarker marks the request span as failed for 4xx and 5xx
// responses. Place it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		span := trace.SpanFromContext(c.Request.Context())
		if status < http.StatusBadRequest || !span.IsRecording() {
			return
		}
		desc := "Client Error"
		switch {
		case status >= http.StatusInternalServerError:
			desc = http.StatusText(http.StatusInternalServerError)
		case spanStatusTexts[status]:
			desc = http.StatusText(status)
		}
		span.SetStatus(codes.Error, desc)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
