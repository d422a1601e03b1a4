package flowline

import (
	"context"
	"time"
)

// RunFunc is the core function type for executing a whole run.
type RunFunc[S any] func(ctx context.Context, graph *Graph[S], state S, logger Logger) error

// Middleware wraps run execution. Middleware can perform work before
// and after a run, adjust the context, or short-circuit execution
// entirely.
type Middleware[S any] func(next RunFunc[S]) RunFunc[S]

// StageRunFunc is the core function type for executing a single node.
type StageRunFunc[S any] func(ctx context.Context, name string, stage Stage[S], state S, logger Logger) error

// StageMiddleware wraps the execution of every node in a run.
type StageMiddleware[S any] func(next StageRunFunc[S]) StageRunFunc[S]

// Executor walks a compiled Graph from its entry node to End,
// invoking each node's stage and following its edges. One Executor
// may serve any number of concurrent runs; all per-run data lives in
// the state record, which is never shared between runs.
type Executor[S any] struct {
	middleware      []Middleware[S]
	stageMiddleware []StageMiddleware[S]
	defaultLogger   Logger
	stepLimit       int
}

// Option configures an Executor.
type Option[S any] func(*Executor[S])

// WithMiddleware adds run-level middleware to the executor.
func WithMiddleware[S any](middleware ...Middleware[S]) Option[S] {
	return func(e *Executor[S]) {
		e.middleware = append(e.middleware, middleware...)
	}
}

// WithStageMiddleware adds middleware around every node execution.
func WithStageMiddleware[S any](middleware ...StageMiddleware[S]) Option[S] {
	return func(e *Executor[S]) {
		e.stageMiddleware = append(e.stageMiddleware, middleware...)
	}
}

// WithLogger sets the logger used when Run is not given one.
func WithLogger[S any](logger Logger) Option[S] {
	return func(e *Executor[S]) {
		e.defaultLogger = logger
	}
}

// WithStepLimit overrides the step budget. The default is twice the
// node count of the graph being run.
func WithStepLimit[S any](limit int) Option[S] {
	return func(e *Executor[S]) {
		e.stepLimit = limit
	}
}

// NewExecutor creates an executor with the given options.
func NewExecutor[S any](opts ...Option[S]) *Executor[S] {
	e := &Executor[S]{defaultLogger: NewDefaultLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Use adds run-level middleware to the executor's chain.
func (e *Executor[S]) Use(middleware ...Middleware[S]) {
	e.middleware = append(e.middleware, middleware...)
}

// Run executes the graph against the state, applying the middleware
// chain. It returns once a terminal edge is followed; the mutated
// state is the run's result. Failures that the graph's error node
// intercepts do not surface here: only an exceeded step budget, an
// unroutable predicate label, or a stage failure with no error node
// to catch it produce a non-nil error.
func (e *Executor[S]) Run(ctx context.Context, graph *Graph[S], state S) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var handler RunFunc[S] = e.execute

	// Apply middleware in reverse order
	for i := len(e.middleware) - 1; i >= 0; i-- {
		handler = e.middleware[i](handler)
	}

	return handler(ctx, graph, state, e.defaultLogger)
}

// execute is the core run loop.
func (e *Executor[S]) execute(ctx context.Context, g *Graph[S], state S, logger Logger) error {
	limit := e.stepLimit
	if limit <= 0 {
		limit = 2 * g.NodeCount()
	}

	var runStage StageRunFunc[S] = e.runStage
	for i := len(e.stageMiddleware) - 1; i >= 0; i-- {
		runStage = e.stageMiddleware[i](runStage)
	}

	current := g.entry
	steps := 0
	intercepted := false

	for current != End {
		// Cancellation is honored only between stage boundaries. A
		// cancelled run must still reach a terminal node, so it is
		// diverted through the error node with the cause recorded
		// into the state.
		if err := ctx.Err(); err != nil && !intercepted {
			if g.errorNode == "" {
				return err
			}
			logger.Warn("run cancelled before node %q, diverting to %q", current, g.errorNode)
			e.recordFailure(g, state, err)
			current = g.errorNode
			intercepted = true
			// The error path still has stages to run.
			ctx = context.WithoutCancel(ctx)
			continue
		}

		steps++
		if steps > limit {
			return &OverrunError{Steps: steps, Limit: limit}
		}

		n := g.nodes[current]
		logger.Debug("executing node %q (step %d/%d)", current, steps, limit)
		if err := runStage(ctx, current, n.stage, state, logger); err != nil {
			if g.errorNode == "" || intercepted || current == g.errorNode {
				return &StageError{Node: current, Err: err}
			}
			logger.Warn("node %q failed, diverting to %q: %v", current, g.errorNode, err)
			e.recordFailure(g, state, err)
			current = g.errorNode
			intercepted = true
			continue
		}

		if n.predicate != nil {
			label := n.predicate(state)
			next, ok := n.paths[label]
			if !ok {
				return &RouteError{Node: current, Label: label}
			}
			logger.Debug("node %q routed %q -> %q", current, label, next)
			current = next
			continue
		}
		current = n.next
	}

	logger.Debug("run reached terminal node after %d steps", steps)
	return nil
}

// runStage is the innermost stage handler wrapped by stage middleware.
func (e *Executor[S]) runStage(ctx context.Context, name string, stage Stage[S], state S, logger Logger) error {
	return stage.Apply(ctx, state)
}

func (e *Executor[S]) recordFailure(g *Graph[S], state S, cause error) {
	if g.capture != nil {
		g.capture(state, cause)
	}
}

// LoggingMiddleware creates middleware that logs run boundaries and
// outcome.
func LoggingMiddleware[S any]() Middleware[S] {
	return func(next RunFunc[S]) RunFunc[S] {
		return func(ctx context.Context, graph *Graph[S], state S, logger Logger) error {
			logger.Info("starting run at node %q", graph.Entry())

			start := time.Now()
			err := next(ctx, graph, state, logger)
			duration := time.Since(start)

			if err != nil {
				logger.Error("run failed after %v: %v", duration.Round(time.Millisecond), err)
			} else {
				logger.Info("run completed in %v", duration.Round(time.Millisecond))
			}

			return err
		}
	}
}

// TimeLimitMiddleware creates middleware that enforces a wall-clock
// limit on the whole run. The deadline is observed between stages;
// individual stages bound their own external calls.
func TimeLimitMiddleware[S any](limit time.Duration) Middleware[S] {
	return func(next RunFunc[S]) RunFunc[S] {
		return func(ctx context.Context, graph *Graph[S], state S, logger Logger) error {
			ctx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			return next(ctx, graph, state, logger)
		}
	}
}

// StageLoggingMiddleware creates stage middleware that logs each node
// execution with its duration.
func StageLoggingMiddleware[S any]() StageMiddleware[S] {
	return func(next StageRunFunc[S]) StageRunFunc[S] {
		return func(ctx context.Context, name string, stage Stage[S], state S, logger Logger) error {
			start := time.Now()
			err := next(ctx, name, stage, state, logger)
			if err != nil {
				logger.Error("node %q failed after %v: %v", name, time.Since(start).Round(time.Microsecond), err)
			} else {
				logger.Debug("node %q completed in %v", name, time.Since(start).Round(time.Microsecond))
			}
			return err
		}
	}
}
