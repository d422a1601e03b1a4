package support

import (
	"context"

	"github.com/flowline-dev/flowline"
)

// Reporter receives the final state of a run for delivery. The
// executor never consumes its result; a failing reporter is logged by
// the send stage and does not fail the run.
type Reporter interface {
	Deliver(ctx context.Context, state *State) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, state *State) error

// Deliver implements Reporter.
func (f ReporterFunc) Deliver(ctx context.Context, state *State) error {
	return f(ctx, state)
}

// LogReporter writes the final response to the workflow log. It is
// the default reporter; real deployments substitute email, chat, or
// queue delivery.
type LogReporter struct {
	Logger flowline.Logger
}

// Deliver implements Reporter.
func (r *LogReporter) Deliver(ctx context.Context, state *State) error {
	logger := r.Logger
	if logger == nil {
		logger = flowline.NewDefaultLogger()
	}
	logger.Info("request %s resolved (category=%s priority=%s escalated=%t steps=%d): %s",
		state.RequestID, state.Category, state.Priority, state.Escalated, state.StepCount, state.Response)
	return nil
}
