package workflow

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sells-group/research-mcp/internal/model"
)

const instrumentationName = "github.com/sells-group/research-mcp/internal/workflow"

// Telemetry records OpenTelemetry metrics and spans for workflow runs.
type Telemetry struct {
	tracer       trace.Tracer
	steps        metric.Int64Counter
	stepLatency  metric.Float64Histogram
	calls        metric.Int64Counter
	runs         metric.Int64Counter
	runLatency   metric.Float64Histogram
	completeness metric.Float64Histogram
}

// NewTelemetry builds instruments from the given providers. Nil providers
// fall back to the global ones, which are no-ops unless the host installs
// an SDK.
func NewTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) (*Telemetry, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(instrumentationName)

	t := &Telemetry{tracer: tp.Tracer(instrumentationName)}
	var err error
	if t.steps, err = meter.Int64Counter("research.steps",
		metric.WithDescription("Workflow steps by name, state and data tag"),
	); err != nil {
		return nil, eris.Wrap(err, "workflow: steps counter")
	}
	if t.stepLatency, err = meter.Float64Histogram("research.step.latency_ms",
		metric.WithDescription("Workflow step latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, eris.Wrap(err, "workflow: step histogram")
	}
	if t.calls, err = meter.Int64Counter("research.datasource.calls",
		metric.WithDescription("Data-source calls by provider and tag"),
	); err != nil {
		return nil, eris.Wrap(err, "workflow: calls counter")
	}
	if t.runs, err = meter.Int64Counter("research.runs",
		metric.WithDescription("Workflow runs by final stage"),
	); err != nil {
		return nil, eris.Wrap(err, "workflow: runs counter")
	}
	if t.runLatency, err = meter.Float64Histogram("research.run.latency_ms",
		metric.WithDescription("Workflow run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, eris.Wrap(err, "workflow: run histogram")
	}
	if t.completeness, err = meter.Float64Histogram("research.completeness",
		metric.WithDescription("Completeness score of finished runs"),
		metric.WithUnit("%"),
	); err != nil {
		return nil, eris.Wrap(err, "workflow: completeness histogram")
	}
	return t, nil
}

func (t *Telemetry) startRun(ctx context.Context, ticker, threadID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "research.run",
		trace.WithAttributes(
			attribute.String("ticker", ticker),
			attribute.String("thread_id", threadID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *Telemetry) startStep(ctx context.Context, step string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "research.step."+step,
		trace.WithAttributes(attribute.String("step", step)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *Telemetry) recordStep(ctx context.Context, step string, state model.StepState, tag model.DataTag, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("state", string(state)),
		attribute.String("tag", string(tag)),
	)
	t.steps.Add(ctx, 1, attrs)
	t.stepLatency.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.String("step", step)))
}

func (t *Telemetry) recordCall(ctx context.Context, provider model.Source, tag model.DataTag) {
	t.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("tag", string(tag)),
	))
}

func (t *Telemetry) recordRun(ctx context.Context, stage model.Stage, d time.Duration, completeness float64, hasScore bool) {
	attrs := metric.WithAttributes(attribute.String("stage", string(stage)))
	t.runs.Add(ctx, 1, attrs)
	t.runLatency.Record(ctx, float64(d.Milliseconds()), attrs)
	if hasScore {
		t.completeness.Record(ctx, completeness)
	}
}
