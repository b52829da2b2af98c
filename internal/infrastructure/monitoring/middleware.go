package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware refreshes time-derived gauges on each API request. Request
// counting for the audit API itself is intentionally minimal; the pipeline
// collectors carry the signal that matters.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		metrics.Tick()
	}
}

// CallTimer measures one privileged call.
type CallTimer struct {
	start      time.Time
	metrics    *Metrics
	capability string
}

// NewCallTimer starts timing a call.
func NewCallTimer(metrics *Metrics, capability string) *CallTimer {
	return &CallTimer{start: time.Now(), metrics: metrics, capability: capability}
}

// Stop records the duration, and the error code when the call failed.
func (t *CallTimer) Stop(errCode string) {
	t.metrics.CallDuration.WithLabelValues(t.capability).Observe(time.Since(t.start).Seconds())
	if errCode != "" {
		t.metrics.CallErrors.WithLabelValues(t.capability, errCode).Inc()
	}
}
