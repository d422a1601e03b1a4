// Package support implements the support-request pipeline on top of
// the flowline engine: validate, categorize, respond, check
// escalation, create ticket, send response, with a dedicated error
// path.
package support

import (
	"context"

	"github.com/flowline-dev/flowline"
	"github.com/flowline-dev/flowline/genai"
	"github.com/flowline-dev/flowline/tickets"
)

// Node names of the support graph.
const (
	NodeValidate        = "validate"
	NodeCategorize      = "categorize"
	NodeRespond         = "respond"
	NodeCheckEscalation = "check_escalation"
	NodeCreateTicket    = "create_ticket"
	NodeSendResponse    = "send_response"
	NodeHandleError     = "handle_error"
)

// Workflow runs support requests through the pipeline graph. Build it
// once at startup; it is safe for concurrent use.
type Workflow struct {
	graph    *flowline.Graph[*State]
	executor *flowline.Executor[*State]
	logger   flowline.Logger
}

// Result is what the invocation interface hands back to callers such
// as an HTTP endpoint.
type Result struct {
	Response  string   `json:"response"`
	Escalated bool     `json:"escalated"`
	Category  Category `json:"category,omitempty"`
	Priority  Priority `json:"priority,omitempty"`
}

type workflowConfig struct {
	client       genai.Client
	sink         tickets.Sink
	reporter     Reporter
	logger       flowline.Logger
	executorOpts []flowline.Option[*State]
}

// WorkflowOption configures NewWorkflow.
type WorkflowOption func(*workflowConfig)

// WithGenerationClient makes the respond stage consult the generation
// collaborator before falling back to templates.
func WithGenerationClient(client genai.Client) WorkflowOption {
	return func(c *workflowConfig) {
		c.client = client
	}
}

// WithTicketSink sets where escalated requests are recorded.
func WithTicketSink(sink tickets.Sink) WorkflowOption {
	return func(c *workflowConfig) {
		c.sink = sink
	}
}

// WithReporter sets the delivery collaborator for final states.
func WithReporter(reporter Reporter) WorkflowOption {
	return func(c *workflowConfig) {
		c.reporter = reporter
	}
}

// WithLogger sets the workflow logger.
func WithLogger(logger flowline.Logger) WorkflowOption {
	return func(c *workflowConfig) {
		c.logger = logger
	}
}

// WithExecutorOptions forwards options (middleware, step limits) to
// the underlying executor.
func WithExecutorOptions(opts ...flowline.Option[*State]) WorkflowOption {
	return func(c *workflowConfig) {
		c.executorOpts = append(c.executorOpts, opts...)
	}
}

// BuildGraph assembles the support pipeline graph:
//
//	validate -(has_error)-> {error: handle_error, continue: categorize}
//	categorize -> respond -> check_escalation
//	check_escalation -(should_escalate)-> {escalate: create_ticket, respond: send_response}
//	create_ticket -> send_response -> END
//	handle_error -> END
func BuildGraph(client genai.Client, sink tickets.Sink, reporter Reporter, logger flowline.Logger) (*flowline.Graph[*State], error) {
	return flowline.NewBuilder[*State]().
		AddNode(NodeValidate, Validate()).
		AddNode(NodeCategorize, Categorize()).
		AddNode(NodeRespond, Respond(client, logger)).
		AddNode(NodeCheckEscalation, CheckEscalation()).
		AddNode(NodeCreateTicket, CreateTicket(sink, logger)).
		AddNode(NodeSendResponse, SendResponse(reporter, logger)).
		AddNode(NodeHandleError, HandleError()).
		SetEntry(NodeValidate).
		AddConditionalEdge(NodeValidate, HasError, map[string]string{
			RouteError:    NodeHandleError,
			RouteContinue: NodeCategorize,
		}).
		AddEdge(NodeCategorize, NodeRespond).
		AddEdge(NodeRespond, NodeCheckEscalation).
		AddConditionalEdge(NodeCheckEscalation, ShouldEscalate, map[string]string{
			RouteEscalate: NodeCreateTicket,
			RouteRespond:  NodeSendResponse,
		}).
		AddEdge(NodeCreateTicket, NodeSendResponse).
		AddEdge(NodeSendResponse, flowline.End).
		AddEdge(NodeHandleError, flowline.End).
		SetErrorNode(NodeHandleError, captureFailure).
		Compile()
}

// captureFailure records an executor-intercepted failure (stage error
// or cancellation) into the state so HandleError can report it. An
// error already captured by a stage wins.
func captureFailure(s *State, cause error) {
	if s.Error == "" {
		s.Error = cause.Error()
	}
}

// NewWorkflow builds the support workflow with its collaborators. All
// collaborators are optional: by default responses come from the
// template table, tickets go to an in-memory sink, and final states
// are logged.
func NewWorkflow(opts ...WorkflowOption) (*Workflow, error) {
	cfg := workflowConfig{
		logger: flowline.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sink == nil {
		cfg.sink = tickets.NewMemorySink()
	}
	if cfg.reporter == nil {
		cfg.reporter = &LogReporter{Logger: cfg.logger}
	}

	graph, err := BuildGraph(cfg.client, cfg.sink, cfg.reporter, cfg.logger)
	if err != nil {
		return nil, err
	}

	executorOpts := append([]flowline.Option[*State]{
		flowline.WithLogger[*State](cfg.logger),
	}, cfg.executorOpts...)

	return &Workflow{
		graph:    graph,
		executor: flowline.NewExecutor(executorOpts...),
		logger:   cfg.logger,
	}, nil
}

// Graph exposes the compiled pipeline graph for introspection.
func (w *Workflow) Graph() *flowline.Graph[*State] { return w.graph }

// Process runs one request through the pipeline and returns the
// outcome. Failures the pipeline handles itself (validation,
// generation) come back as ordinary results carrying the apology
// text; only internal faults such as a step-budget overrun return an
// error.
func (w *Workflow) Process(ctx context.Context, requestID, input string) (Result, error) {
	state := NewState(requestID, input)
	if err := w.executor.Run(ctx, w.graph, state); err != nil {
		return Result{}, err
	}
	return Result{
		Response:  state.Response,
		Escalated: state.Escalated,
		Category:  state.Category,
		Priority:  state.Priority,
	}, nil
}

// ProcessState runs one request and returns the full final state.
// Process is the narrow interface; this variant serves callers that
// need the step count or ticket flag.
func (w *Workflow) ProcessState(ctx context.Context, requestID, input string) (*State, error) {
	state := NewState(requestID, input)
	if err := w.executor.Run(ctx, w.graph, state); err != nil {
		return nil, err
	}
	return state, nil
}
