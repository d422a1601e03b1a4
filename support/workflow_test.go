package support

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline-dev/flowline"
	"github.com/flowline-dev/flowline/genai"
	"github.com/flowline-dev/flowline/tickets"
)

func newTestWorkflow(t *testing.T, opts ...WorkflowOption) *Workflow {
	t.Helper()
	w, err := NewWorkflow(opts...)
	require.NoError(t, err)
	return w
}

func TestWorkflowGraphShape(t *testing.T) {
	w := newTestWorkflow(t)
	g := w.Graph()

	assert.Equal(t, NodeValidate, g.Entry())
	assert.Equal(t, NodeHandleError, g.ErrorNode())
	assert.Equal(t, []string{
		NodeCategorize,
		NodeCheckEscalation,
		NodeCreateTicket,
		NodeHandleError,
		NodeRespond,
		NodeSendResponse,
		NodeValidate,
	}, g.Nodes())
}

func TestWorkflowPasswordRequest(t *testing.T) {
	w := newTestWorkflow(t)

	state, err := w.ProcessState(context.Background(), "REQ001", "I forgot my password")

	require.NoError(t, err)
	assert.Equal(t, CategoryAuthentication, state.Category)
	assert.Equal(t, PriorityMedium, state.Priority)
	assert.False(t, state.Escalated)
	assert.False(t, state.TicketCreated)
	assert.Contains(t, state.Response, "Forgot Password")
	assert.Empty(t, state.Error)
	// validate, categorize, respond, check_escalation, send_response
	assert.Equal(t, 5, state.StepCount)
}

func TestWorkflowCrashComplaint(t *testing.T) {
	sink := tickets.NewMemorySink()
	w := newTestWorkflow(t, WithTicketSink(sink))

	state, err := w.ProcessState(context.Background(), "REQ002", "This app is terrible! It keeps crashing!")

	require.NoError(t, err)
	assert.Equal(t, CategoryTechnical, state.Category)
	assert.Equal(t, PriorityHigh, state.Priority)
	assert.True(t, state.Escalated)
	assert.True(t, state.TicketCreated)
	assert.Contains(t, state.Response, "Support ticket TICKET-")
	assert.Equal(t, 1, sink.Count())
	// the escalated path adds create_ticket
	assert.Equal(t, 6, state.StepCount)
}

func TestWorkflowShortMessage(t *testing.T) {
	sink := tickets.NewMemorySink()
	w := newTestWorkflow(t, WithTicketSink(sink))

	state, err := w.ProcessState(context.Background(), "REQ004", "Hi")

	require.NoError(t, err)
	assert.Equal(t, "Message too short", state.Error)
	assert.Contains(t, state.Response, "I'm sorry, there was an issue processing your request: Message too short")
	assert.True(t, state.Escalated)
	assert.False(t, state.TicketCreated)
	assert.Equal(t, Category(""), state.Category)
	assert.Equal(t, 0, sink.Count())
	// validate, handle_error
	assert.Equal(t, 2, state.StepCount)
}

func TestWorkflowEmptyMessage(t *testing.T) {
	w := newTestWorkflow(t)

	result, err := w.Process(context.Background(), "REQ005", "   ")

	require.NoError(t, err)
	assert.Contains(t, result.Response, "Message is empty")
	assert.True(t, result.Escalated)
}

func TestWorkflowResultShape(t *testing.T) {
	w := newTestWorkflow(t)

	result, err := w.Process(context.Background(), "REQ001", "I forgot my password")

	require.NoError(t, err)
	assert.Equal(t, Result{
		Response:  responseTemplates[CategoryAuthentication],
		Escalated: false,
		Category:  CategoryAuthentication,
		Priority:  PriorityMedium,
	}, result)
}

func TestWorkflowGenerationClient(t *testing.T) {
	client := &genai.StubClient{Response: "Here is how to reset it."}
	w := newTestWorkflow(t, WithGenerationClient(client))

	result, err := w.Process(context.Background(), "REQ001", "I forgot my password")

	require.NoError(t, err)
	assert.Equal(t, "Here is how to reset it.", result.Response)
	assert.Len(t, client.Prompts, 1)
}

func TestWorkflowGenerationFailureFallsBack(t *testing.T) {
	client := &genai.StubClient{Err: &genai.GenerationError{Status: 500}}
	w := newTestWorkflow(t, WithGenerationClient(client))

	result, err := w.Process(context.Background(), "REQ001", "I forgot my password")

	require.NoError(t, err)
	assert.Equal(t, responseTemplates[CategoryAuthentication], result.Response)
	assert.False(t, result.Escalated)
}

func TestWorkflowIdempotence(t *testing.T) {
	client := &genai.StubClient{Response: "Fixed reply."}
	w := newTestWorkflow(t, WithGenerationClient(client))

	first, err := w.Process(context.Background(), "REQ010", "The app is broken")
	require.NoError(t, err)
	second, err := w.Process(context.Background(), "REQ011", "The app is broken")
	require.NoError(t, err)

	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Priority, second.Priority)
	assert.Equal(t, first.Escalated, second.Escalated)
	assert.Equal(t, first.Response, second.Response)
}

func TestWorkflowDuplicateRequestRoutesToErrorPath(t *testing.T) {
	// Reprocessing the same request ID derives the same ticket ID; the
	// sink rejects it and the run ends on the error path instead of
	// claiming a second ticket.
	sink := tickets.NewMemorySink()
	w := newTestWorkflow(t, WithTicketSink(sink))

	first, err := w.ProcessState(context.Background(), "REQ002", "This app is terrible!")
	require.NoError(t, err)
	require.True(t, first.TicketCreated)

	second, err := w.ProcessState(context.Background(), "REQ002", "This app is terrible!")
	require.NoError(t, err)
	assert.False(t, second.TicketCreated)
	assert.Contains(t, second.Error, "ticket already exists")
	assert.Contains(t, second.Response, "I'm sorry")
	assert.Equal(t, 1, sink.Count())
}

func TestWorkflowSendsFinalState(t *testing.T) {
	var mu sync.Mutex
	var delivered []*State
	reporter := ReporterFunc(func(ctx context.Context, state *State) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, state)
		return nil
	})
	w := newTestWorkflow(t, WithReporter(reporter))

	_, err := w.Process(context.Background(), "REQ001", "I forgot my password")

	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, "REQ001", delivered[0].RequestID)
}

func TestWorkflowCancelledContext(t *testing.T) {
	w := newTestWorkflow(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := w.ProcessState(ctx, "REQ001", "I forgot my password")

	require.NoError(t, err)
	assert.Equal(t, context.Canceled.Error(), state.Error)
	assert.Contains(t, state.Response, "I'm sorry")
	assert.True(t, state.Escalated)
	// handle_error only
	assert.Equal(t, 1, state.StepCount)
}

func TestWorkflowConcurrentRequests(t *testing.T) {
	w := newTestWorkflow(t, WithTicketSink(tickets.NewMemorySink()))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("REQ%03d", i)
			result, err := w.Process(context.Background(), id, "I forgot my password")
			assert.NoError(t, err)
			assert.Equal(t, CategoryAuthentication, result.Category)
		}(i)
	}
	wg.Wait()
}

func TestWorkflowExecutorOptions(t *testing.T) {
	var runs int
	counting := func(next flowline.RunFunc[*State]) flowline.RunFunc[*State] {
		return func(ctx context.Context, g *flowline.Graph[*State], s *State, logger flowline.Logger) error {
			runs++
			return next(ctx, g, s, logger)
		}
	}
	w := newTestWorkflow(t, WithExecutorOptions(flowline.WithMiddleware(counting)))

	_, err := w.Process(context.Background(), "REQ001", "I forgot my password")

	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}
