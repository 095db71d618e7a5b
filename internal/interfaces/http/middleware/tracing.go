package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing returns OpenTelemetry tracing middleware
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TraceAttributes annotates the active span with the request id and the
// authenticated client id, and marks 4xx/5xx responses as span errors.
// Must be registered after Tracing and the auth middleware.
func TraceAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID, exists := c.Get("request_id"); exists {
				if id, ok := requestID.(string); ok && id != "" {
					span.SetAttributes(attribute.String("request_id", id))
				}
			}
			if clientID, ok := GetClientID(c); ok {
				span.SetAttributes(attribute.String("client_id", clientID))
			}
		}

		c.Next()

		if span.IsRecording() {
			status := c.Writer.Status()
			if status >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		}
	}
}
