package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "canvas-api"
	planSpanName    = "canvas.plan.run"
	planEventName   = "plan.run"
	planEventDomain = "canvas"
)

// planRunMetrics instruments one recurrence-planning run: an OTel span for
// trace backends plus a mirrored structured log event for plain log search.
type planRunMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	fetchDuration  time.Duration
	planDuration   time.Duration
	insertDuration time.Duration
	snapshotSize   int
	planned        int
	skipped        int
	errorStage     string
}

func newPlanRunMetrics(ctx context.Context, logger *log.Logger) (*planRunMetrics, context.Context) {
	tracer := otel.GetTracerProvider().Tracer(tracerName)
	spanCtx, span := tracer.Start(ctx, planSpanName, trace.WithSpanKind(trace.SpanKindInternal))
	return &planRunMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *planRunMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *planRunMetrics) ObservePlan(d time.Duration) {
	if d > 0 {
		m.planDuration = d
	}
}

func (m *planRunMetrics) ObserveInsert(d time.Duration) {
	if d > 0 {
		m.insertDuration = d
	}
}

func (m *planRunMetrics) SetSnapshotSize(n int) {
	if n < 0 {
		n = 0
	}
	m.snapshotSize = n
}

func (m *planRunMetrics) SetPlanned(n int) {
	if n < 0 {
		n = 0
	}
	m.planned = n
}

func (m *planRunMetrics) SetSkipped(n int) {
	if n < 0 {
		n = 0
	}
	m.skipped = n
}

func (m *planRunMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and emits the observability event. It must be called
// exactly once per run.
func (m *planRunMetrics) Log(err error) {
	if m == nil || m.span == nil {
		return
	}

	total := durationToMillis(time.Since(m.start))
	sevText, sevNumber := severityForError(err)

	attrs := []attribute.KeyValue{
		attribute.String("event.name", planEventName),
		attribute.String("event.domain", planEventDomain),
		attribute.String("severity_text", sevText),
		attribute.Int("severity_number", sevNumber),
		attribute.Float64("canvas.plan.total_ms", total),
		attribute.Int("canvas.plan.snapshot_size", m.snapshotSize),
		attribute.Int("canvas.plan.planned", m.planned),
		attribute.Int("canvas.plan.skipped", m.skipped),
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("canvas.plan.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.planDuration > 0 {
		attrs = append(attrs, attribute.Float64("canvas.plan.plan_ms", durationToMillis(m.planDuration)))
	}
	if m.insertDuration > 0 {
		attrs = append(attrs, attribute.Float64("canvas.plan.insert_ms", durationToMillis(m.insertDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("canvas.plan.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	m.span.SetAttributes(attrs...)
	m.span.AddEvent("observability.event", trace.WithAttributes(attrs...))
	if err != nil {
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}

	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      planEventName,
		"event.domain":    planEventDomain,
		"severity_text":   sevText,
		"severity_number": sevNumber,
		"attributes":      attrMap,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	entry := m.logger.WithFields(fields)
	if err != nil {
		entry.Error("observability.event")
		return
	}
	entry.Info("observability.event")
}

func severityForError(err error) (string, int) {
	if err != nil {
		return "ERROR", 17
	}
	return "INFO", 9
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
