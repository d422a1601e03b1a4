package flowline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/flowline-dev/flowline"

// Instrumentation bundles the OpenTelemetry tracer and instruments
// used by the tracing middleware.
type Instrumentation struct {
	tracer        trace.Tracer
	stageCount    metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewInstrumentation builds engine instrumentation from the given
// providers. Pass nil for either to fall back to the process-global
// otel providers.
func NewInstrumentation(tp trace.TracerProvider, mp metric.MeterProvider) (*Instrumentation, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	stageCount, err := meter.Int64Counter("flowline.stage.executions",
		metric.WithDescription("Stage executions by node."))
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("flowline.stage.duration",
		metric.WithDescription("Stage execution duration."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Instrumentation{
		tracer:        tp.Tracer(instrumentationName),
		stageCount:    stageCount,
		stageDuration: stageDuration,
	}, nil
}

// TracingMiddleware creates run middleware that wraps the whole run
// in a span.
func TracingMiddleware[S any](inst *Instrumentation) Middleware[S] {
	return func(next RunFunc[S]) RunFunc[S] {
		return func(ctx context.Context, graph *Graph[S], state S, logger Logger) error {
			ctx, span := inst.tracer.Start(ctx, "flowline.run",
				trace.WithAttributes(attribute.String("flowline.entry", graph.Entry())))
			defer span.End()

			err := next(ctx, graph, state, logger)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}

// StageTracingMiddleware creates stage middleware that opens a child
// span per node and records the stage instruments.
func StageTracingMiddleware[S any](inst *Instrumentation) StageMiddleware[S] {
	return func(next StageRunFunc[S]) StageRunFunc[S] {
		return func(ctx context.Context, name string, stage Stage[S], state S, logger Logger) error {
			attrs := metric.WithAttributes(attribute.String("flowline.node", name))
			ctx, span := inst.tracer.Start(ctx, "flowline.stage."+name)
			start := time.Now()
			err := next(ctx, name, stage, state, logger)
			inst.stageDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			inst.stageCount.Add(ctx, 1, attrs)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
			return err
		}
	}
}
