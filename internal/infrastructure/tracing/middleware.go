package tracing

import (
	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens a span per audit API request. The extension channel
// traces per call in the pipeline instead; a WebSocket connection as a single
// span would be useless.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := tracer.StartSpan(c.Request.Context(), c.FullPath())
		span.SetTag("method", c.Request.Method)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetTag("status", statusText(c.Writer.Status()))
		tracer.Finish(span)
	}
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "error"
	case code >= 400:
		return "client_error"
	default:
		return "ok"
	}
}
