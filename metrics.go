package flowline

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for engine instrumentation.
// One Metrics value may be shared by every executor in the process.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	StagesTotal   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// NewMetrics creates the engine collectors and registers them with
// reg. Pass prometheus.DefaultRegisterer for the process-wide
// registry, or a private registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowline",
			Name:      "runs_total",
			Help:      "Workflow runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowline",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of whole workflow runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		StagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowline",
			Name:      "stages_total",
			Help:      "Stage executions by node and outcome.",
		}, []string{"node", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual stage executions.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"node"}),
	}
	reg.MustRegister(m.RunsTotal, m.RunDuration, m.StagesTotal, m.StageDuration)
	return m
}

// MetricsMiddleware creates run middleware that records run counts
// and durations.
func MetricsMiddleware[S any](m *Metrics) Middleware[S] {
	return func(next RunFunc[S]) RunFunc[S] {
		return func(ctx context.Context, graph *Graph[S], state S, logger Logger) error {
			start := time.Now()
			err := next(ctx, graph, state, logger)
			m.RunDuration.Observe(time.Since(start).Seconds())
			m.RunsTotal.WithLabelValues(runOutcome(err)).Inc()
			return err
		}
	}
}

// StageMetricsMiddleware creates stage middleware that records
// per-node execution counts and durations.
func StageMetricsMiddleware[S any](m *Metrics) StageMiddleware[S] {
	return func(next StageRunFunc[S]) StageRunFunc[S] {
		return func(ctx context.Context, name string, stage Stage[S], state S, logger Logger) error {
			start := time.Now()
			err := next(ctx, name, stage, state, logger)
			m.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			m.StagesTotal.WithLabelValues(name, outcome).Inc()
			return err
		}
	}
}

func runOutcome(err error) string {
	switch err.(type) {
	case nil:
		return "ok"
	case *OverrunError:
		return "overrun"
	default:
		return "error"
	}
}
