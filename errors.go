package flowline

import "fmt"

// OverrunError reports a run that exceeded the executor's step
// budget. It is fatal to the run and signals a misconfigured graph
// (typically an unintended cycle); it is meant for operators, never
// for user-facing text.
type OverrunError struct {
	// Steps is the number of stages executed before the run was cut off.
	Steps int
	// Limit is the step budget that was exceeded.
	Limit int
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("workflow overrun: %d stages executed, limit %d", e.Steps, e.Limit)
}

// RouteError reports a conditional edge whose predicate returned a
// label with no entry in the path map.
type RouteError struct {
	Node  string
	Label string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("node %q: predicate returned unmapped label %q", e.Node, e.Label)
}

// StageError wraps a failure returned by a stage, annotated with the
// node it came from. The Executor produces it when a graph has no
// error node to intercept the failure.
type StageError struct {
	Node string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Node, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
