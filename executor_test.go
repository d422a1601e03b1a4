package flowline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearGraph builds a -> b -> END.
func linearGraph(t *testing.T) *Graph[*testState] {
	t.Helper()
	g, err := NewBuilder[*testState]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddEdge("a", "b").
		AddEdge("b", End).
		SetEntry("a").
		Compile()
	require.NoError(t, err)
	return g
}

// branchGraph builds a -(pick)-> {left, right} -> END with an error
// node that records the intercepted cause.
func branchGraph(t *testing.T, failing map[string]error) *Graph[*testState] {
	t.Helper()
	stage := func(name string) StageFunc[*testState] {
		return func(ctx context.Context, s *testState) error {
			s.trail = append(s.trail, name)
			if err, ok := failing[name]; ok {
				return err
			}
			return nil
		}
	}
	pick := func(s *testState) string {
		if len(s.trail) > 0 && s.trail[0] == "a" {
			return "left"
		}
		return "right"
	}
	g, err := NewBuilder[*testState]().
		AddNode("a", stage("a")).
		AddNode("left", stage("left")).
		AddNode("right", stage("right")).
		AddNode("oops", stage("oops")).
		AddConditionalEdge("a", pick, map[string]string{"left": "left", "right": "right"}).
		AddEdge("left", End).
		AddEdge("right", End).
		AddEdge("oops", End).
		SetEntry("a").
		SetErrorNode("oops", func(s *testState, cause error) { s.err = cause.Error() }).
		Compile()
	require.NoError(t, err)
	return g
}

func TestExecutorRunsLinearGraph(t *testing.T) {
	exec := NewExecutor[*testState]()
	state := &testState{}

	err := exec.Run(context.Background(), linearGraph(t), state)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, state.trail)
}

func TestExecutorFollowsConditionalEdge(t *testing.T) {
	exec := NewExecutor[*testState]()
	state := &testState{}

	err := exec.Run(context.Background(), branchGraph(t, nil), state)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "left"}, state.trail)
}

func TestExecutorRejectsUnmappedLabel(t *testing.T) {
	pred := func(s *testState) string { return "nowhere" }
	g, err := NewBuilder[*testState]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddConditionalEdge("a", pred, map[string]string{"somewhere": "b"}).
		AddEdge("b", End).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	runErr := NewExecutor[*testState]().Run(context.Background(), g, &testState{})

	var routeErr *RouteError
	require.ErrorAs(t, runErr, &routeErr)
	assert.Equal(t, "a", routeErr.Node)
	assert.Equal(t, "nowhere", routeErr.Label)
}

func TestExecutorStopsCyclicGraph(t *testing.T) {
	// a <-> b never reaches End; the step budget must cut it off.
	g, err := NewBuilder[*testState]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddEdge("a", "b").
		AddEdge("b", "a").
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	state := &testState{}
	runErr := NewExecutor[*testState]().Run(context.Background(), g, state)

	var overrun *OverrunError
	require.ErrorAs(t, runErr, &overrun)
	assert.Equal(t, 4, overrun.Limit)
	assert.Len(t, state.trail, 4)
}

func TestExecutorStepLimitOption(t *testing.T) {
	g, err := NewBuilder[*testState]().
		AddNode("a", visit("a")).
		AddEdge("a", "a").
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	state := &testState{}
	runErr := NewExecutor(WithStepLimit[*testState](7)).Run(context.Background(), g, state)

	var overrun *OverrunError
	require.ErrorAs(t, runErr, &overrun)
	assert.Equal(t, 7, overrun.Limit)
	assert.Len(t, state.trail, 7)
}

func TestExecutorDivertsStageFailure(t *testing.T) {
	boom := errors.New("boom")
	state := &testState{}

	err := NewExecutor[*testState]().Run(context.Background(), branchGraph(t, map[string]error{"left": boom}), state)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "left", "oops"}, state.trail)
	assert.Equal(t, "boom", state.err)
}

func TestExecutorReturnsStageFailureWithoutErrorNode(t *testing.T) {
	boom := errors.New("boom")
	g, err := NewBuilder[*testState]().
		AddNode("a", StageFunc[*testState](func(ctx context.Context, s *testState) error { return boom })).
		AddEdge("a", End).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	runErr := NewExecutor[*testState]().Run(context.Background(), g, &testState{})

	var stageErr *StageError
	require.ErrorAs(t, runErr, &stageErr)
	assert.Equal(t, "a", stageErr.Node)
	assert.ErrorIs(t, runErr, boom)
}

func TestExecutorReturnsErrorNodeFailure(t *testing.T) {
	// A failure inside the error node itself cannot be intercepted
	// again.
	boom := errors.New("boom")
	g := branchGraph(t, map[string]error{"left": boom, "oops": errors.New("worse")})

	runErr := NewExecutor[*testState]().Run(context.Background(), g, &testState{})

	var stageErr *StageError
	require.ErrorAs(t, runErr, &stageErr)
	assert.Equal(t, "oops", stageErr.Node)
}

func TestExecutorRoutesCancellationToErrorNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := &testState{}
	err := NewExecutor[*testState]().Run(ctx, branchGraph(t, nil), state)

	require.NoError(t, err)
	assert.Equal(t, []string{"oops"}, state.trail)
	assert.Equal(t, context.Canceled.Error(), state.err)
}

func TestExecutorReturnsCancellationWithoutErrorNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExecutor[*testState]().Run(ctx, linearGraph(t), &testState{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutorCancellationBetweenStages(t *testing.T) {
	// The first stage cancels the run; the second must not execute
	// and the error path must still terminate the run.
	ctx, cancel := context.WithCancel(context.Background())
	g, err := NewBuilder[*testState]().
		AddNode("a", StageFunc[*testState](func(ctx context.Context, s *testState) error {
			s.trail = append(s.trail, "a")
			cancel()
			return nil
		})).
		AddNode("b", visit("b")).
		AddNode("oops", visit("oops")).
		AddEdge("a", "b").
		AddEdge("b", End).
		AddEdge("oops", End).
		SetEntry("a").
		SetErrorNode("oops", func(s *testState, cause error) { s.err = cause.Error() }).
		Compile()
	require.NoError(t, err)

	state := &testState{}
	require.NoError(t, NewExecutor[*testState]().Run(ctx, g, state))
	assert.Equal(t, []string{"a", "oops"}, state.trail)
	assert.NotEmpty(t, state.err)
}

func TestExecutorMiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware[*testState] {
		return func(next RunFunc[*testState]) RunFunc[*testState] {
			return func(ctx context.Context, g *Graph[*testState], s *testState, logger Logger) error {
				order = append(order, name+":before")
				err := next(ctx, g, s, logger)
				order = append(order, name+":after")
				return err
			}
		}
	}

	exec := NewExecutor(WithMiddleware(mw("outer"), mw("inner")))
	require.NoError(t, exec.Run(context.Background(), linearGraph(t), &testState{}))

	assert.Equal(t, []string{"outer:before", "inner:before", "inner:after", "outer:after"}, order)
}

func TestExecutorStageMiddlewareSeesEveryNode(t *testing.T) {
	var seen []string
	mw := func(next StageRunFunc[*testState]) StageRunFunc[*testState] {
		return func(ctx context.Context, name string, stage Stage[*testState], s *testState, logger Logger) error {
			seen = append(seen, name)
			return next(ctx, name, stage, s, logger)
		}
	}

	exec := NewExecutor(WithStageMiddleware(mw))
	require.NoError(t, exec.Run(context.Background(), linearGraph(t), &testState{}))

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestExecutorConcurrentRunsShareGraph(t *testing.T) {
	g := linearGraph(t)
	exec := NewExecutor[*testState]()

	var wg sync.WaitGroup
	states := make([]*testState, 50)
	for i := range states {
		states[i] = &testState{}
		wg.Add(1)
		go func(s *testState) {
			defer wg.Done()
			assert.NoError(t, exec.Run(context.Background(), g, s))
		}(states[i])
	}
	wg.Wait()

	for i, s := range states {
		assert.Equal(t, []string{"a", "b"}, s.trail, fmt.Sprintf("run %d", i))
	}
}
