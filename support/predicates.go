package support

// Routing labels returned by the pipeline's predicates.
const (
	RouteError    = "error"
	RouteContinue = "continue"
	RouteEscalate = "escalate"
	RouteRespond  = "respond"
)

// HasError routes to the error path when a failure has been captured
// into the state.
func HasError(s *State) string {
	if s.Error != "" {
		return RouteError
	}
	return RouteContinue
}

// ShouldEscalate routes escalated requests to ticket creation.
func ShouldEscalate(s *State) string {
	if s.Escalated {
		return RouteEscalate
	}
	return RouteRespond
}
