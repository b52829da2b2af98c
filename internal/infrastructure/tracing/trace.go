// Package tracing follows one call through the mediation pipeline: envelope
// verification, gate decision, execution. Spans land in the structured log;
// there is no external collector, the audit trail is the consumer.
package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/id"
)

// Span is one timed pipeline stage.
type Span struct {
	TraceID   id.TraceID
	ParentID  id.TraceID
	Name      string
	StartTime time.Time
	Duration  time.Duration
	Tags      map[string]string
	Err       error
}

// Tracer stamps spans into the log through a buffered collector, so the
// session pipeline never blocks on log I/O for a span.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
}

// New creates a tracer and starts its collector.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1024),
	}
	go t.collect()
	return t
}

// StartSpan opens a span, inheriting the trace from ctx when present.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	parent := FromContext(ctx)
	span := &Span{
		TraceID:   id.NewTraceID(),
		ParentID:  parent,
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	return span, context.WithValue(ctx, traceKey, span.TraceID)
}

// SetTag annotates the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records a failure on the span.
func (s *Span) SetError(err error) {
	s.Err = err
}

// Finish stamps the duration and submits the span. Dropping a span under
// backpressure is acceptable; losing it costs one log line, not audit state.
func (t *Tracer) Finish(s *Span) {
	s.Duration = time.Since(s.StartTime)
	select {
	case t.spans <- s:
	default:
	}
}

func (t *Tracer) collect() {
	for span := range t.spans {
		fields := []zap.Field{
			zap.String("trace_id", span.TraceID.String()),
			zap.String("operation", span.Name),
			zap.String("service", t.service),
			zap.Duration("duration", span.Duration),
		}
		if span.ParentID != "" {
			fields = append(fields, zap.String("parent_id", span.ParentID.String()))
		}
		for k, v := range span.Tags {
			fields = append(fields, zap.String(k, v))
		}
		if span.Err != nil {
			fields = append(fields, zap.Error(span.Err))
			t.logger.Warn("span completed with error", fields...)
			continue
		}
		t.logger.Debug("span completed", fields...)
	}
}

type contextKey string

const traceKey contextKey = "trace_id"

// FromContext returns the active trace ID, or empty.
func FromContext(ctx context.Context) id.TraceID {
	if v, ok := ctx.Value(traceKey).(id.TraceID); ok {
		return v
	}
	return ""
}
