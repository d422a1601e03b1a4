package support

// Category labels a support request by subject area. Exactly one
// category is assigned per run, by the categorize stage.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryBilling        Category = "billing"
	CategoryTechnical      Category = "technical"
	CategoryComplaint      Category = "complaint"
	CategoryGeneral        Category = "general"
)

// Priority ranks how quickly a request needs attention. It is derived
// from the category and never downgraded by later stages.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// State is the record threaded through every stage of one support
// run. A run owns its State exclusively; no two concurrent runs share
// one.
//
// Field discipline: RequestID and Input are immutable after creation.
// Category is set at most once. Priority is only ever raised.
// Escalated is monotonic; once true it stays true. TicketCreated is
// true only when Escalated is. A non-empty Error diverts the run to
// the error path and keeps the ordinary stages from running.
type State struct {
	// RequestID is the opaque identifier assigned when the request
	// entered the system.
	RequestID string `json:"request_id"`

	// Input is the raw customer message.
	Input string `json:"input"`

	Category Category `json:"category,omitempty"`
	Priority Priority `json:"priority,omitempty"`

	// Response accumulates the text delivered back to the customer.
	Response string `json:"response,omitempty"`

	Escalated     bool `json:"escalated"`
	TicketCreated bool `json:"ticket_created"`

	// Error is the captured failure that routed the run to the error
	// path, empty on healthy runs.
	Error string `json:"error,omitempty"`

	// StepCount is incremented by exactly one per stage executed.
	StepCount int `json:"step_count"`
}

// NewState creates the state record for one incoming request.
func NewState(requestID, input string) *State {
	return &State{RequestID: requestID, Input: input}
}

// priorityRank orders priorities so raises can be distinguished from
// downgrades.
func priorityRank(p Priority) int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// raisePriority sets p on the state only if it outranks the current
// priority.
func (s *State) raisePriority(p Priority) {
	if priorityRank(p) > priorityRank(s.Priority) {
		s.Priority = p
	}
}
