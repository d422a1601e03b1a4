package support

import (
	"context"
	"strings"
	"time"

	"github.com/flowline-dev/flowline"
	"github.com/flowline-dev/flowline/genai"
	"github.com/flowline-dev/flowline/tickets"
)

// Message bounds enforced by the validation stage. A bare greeting
// like "Hi" is below the minimum; it carries nothing to act on.
const (
	MinMessageLength = 3
	MaxMessageLength = 1000
)

// Validation failure messages. They end up verbatim inside the
// user-facing apology, so they are phrased for customers.
const (
	errMessageEmpty   = "Message is empty"
	errMessageShort   = "Message too short"
	errMessageTooLong = "Message too long (max 1000 characters)"
)

// Validate checks the incoming message bounds. A failed check records
// the reason into the state's Error field; the graph's has-error edge
// then routes the run to the error path.
func Validate() flowline.StageFunc[*State] {
	return func(ctx context.Context, s *State) error {
		s.StepCount++
		switch {
		case strings.TrimSpace(s.Input) == "":
			s.Error = errMessageEmpty
		case len(s.Input) < MinMessageLength:
			s.Error = errMessageShort
		case len(s.Input) > MaxMessageLength:
			s.Error = errMessageTooLong
		}
		return nil
	}
}

// Categorize assigns the category from the ordered keyword rules and
// derives the priority from the category table. Urgency keywords
// raise the priority to high; an already-urgent complaint is not
// downgraded.
func Categorize() flowline.StageFunc[*State] {
	return func(ctx context.Context, s *State) error {
		s.StepCount++
		s.Category = classify(s.Input)
		s.Priority = priorityFor[s.Category]
		if containsAny(s.Input, urgencyKeywords) {
			s.raisePriority(PriorityHigh)
		}
		return nil
	}
}

// Respond produces the response text. With a generation client it
// asks the collaborator first and falls back to the template table on
// any failure; without one it uses the templates directly. Generation
// failures never propagate past this stage.
func Respond(client genai.Client, logger flowline.Logger) flowline.StageFunc[*State] {
	if logger == nil {
		logger = flowline.NewDefaultLogger()
	}
	return func(ctx context.Context, s *State) error {
		s.StepCount++
		if client != nil {
			text, err := client.Generate(ctx, generationPrompt(s))
			if err == nil && text != "" {
				s.Response = text
				return nil
			}
			logger.Warn("generation failed for request %s, using template: %v", s.RequestID, err)
		}
		s.Response = templateFor(s.Category)
		return nil
	}
}

// CheckEscalation decides whether the request needs a human. The flag
// is monotonic: an already-escalated request stays escalated.
func CheckEscalation() flowline.StageFunc[*State] {
	return func(ctx context.Context, s *State) error {
		s.StepCount++
		if s.Escalated {
			return nil
		}
		s.Escalated = s.Priority == PriorityUrgent ||
			s.Priority == PriorityHigh ||
			s.Category == CategoryComplaint ||
			s.Category == CategoryTechnical ||
			containsAny(s.Input, escalationKeywords)
		return nil
	}
}

// CreateTicket records the escalated request with the sink and
// appends the ticket notice to the response. The ticket ID is derived
// from the request ID, so it is stable for a given request. A sink
// failure is returned to the executor: a ticket we promised but did
// not record must not be reported as created.
func CreateTicket(sink tickets.Sink, logger flowline.Logger) flowline.StageFunc[*State] {
	if logger == nil {
		logger = flowline.NewDefaultLogger()
	}
	return func(ctx context.Context, s *State) error {
		s.StepCount++
		ticketID := tickets.ID(s.RequestID)
		err := sink.Create(ctx, tickets.Ticket{
			ID:        ticketID,
			RequestID: s.RequestID,
			Category:  string(s.Category),
			Priority:  string(s.Priority),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		s.TicketCreated = true
		s.Response += ticketNotice(ticketID)
		logger.Info("ticket %s created for request %s", ticketID, s.RequestID)
		return nil
	}
}

// HandleError terminates a failed run: it replaces the response with
// an apology embedding the captured failure and forces escalation so
// a human follows up.
func HandleError() flowline.StageFunc[*State] {
	return func(ctx context.Context, s *State) error {
		s.StepCount++
		if s.Error == "" {
			s.Error = "unknown error"
		}
		s.Response = apology(s.Error)
		s.Escalated = true
		return nil
	}
}

// SendResponse hands the final state to the reporter. Delivery
// failures are logged and swallowed; the run's result is the state
// itself, not the delivery.
func SendResponse(reporter Reporter, logger flowline.Logger) flowline.StageFunc[*State] {
	if logger == nil {
		logger = flowline.NewDefaultLogger()
	}
	return func(ctx context.Context, s *State) error {
		s.StepCount++
		if reporter == nil {
			return nil
		}
		if err := reporter.Deliver(ctx, s); err != nil {
			logger.Error("delivery failed for request %s: %v", s.RequestID, err)
		}
		return nil
	}
}
