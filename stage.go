package flowline

import "context"

// Stage is a single unit of work within a workflow graph.
// A stage reads and mutates the run state passed to it. A stage must
// never let a failure escape uncontrolled: it either records the
// failure into the state itself, or returns a typed error that the
// Executor routes to the graph's error node.
type Stage[S any] interface {
	// Apply performs the stage's work against the run state.
	Apply(ctx context.Context, state S) error
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc[S any] func(ctx context.Context, state S) error

// Apply implements Stage.
func (f StageFunc[S]) Apply(ctx context.Context, state S) error {
	return f(ctx, state)
}

// Predicate is a pure routing function used by conditional edges.
// It inspects the state after the node's stage has run and returns a
// label that selects the successor from the edge's path map. It must
// not mutate the state or perform external calls.
type Predicate[S any] func(state S) string
