package support

import "strings"

// Keyword tables driving categorization and escalation. Matching is
// case-insensitive substring containment over the raw message.
//
// categoryRules is ordered: the first matching rule wins, so
// authentication outranks billing, billing outranks technical, and so
// on. A message matching nothing falls through to general.
var categoryRules = []struct {
	category Category
	keywords []string
}{
	{CategoryAuthentication, []string{"password", "login", "access"}},
	{CategoryBilling, []string{"billing", "payment", "invoice"}},
	{CategoryTechnical, []string{"bug", "error", "crash", "broken"}},
	{CategoryComplaint, []string{"angry", "frustrated", "terrible"}},
}

// priorityFor maps each category to its base priority.
var priorityFor = map[Category]Priority{
	CategoryAuthentication: PriorityMedium,
	CategoryBilling:        PriorityHigh,
	CategoryTechnical:      PriorityHigh,
	CategoryComplaint:      PriorityUrgent,
	CategoryGeneral:        PriorityLow,
}

// urgencyKeywords raise a request's priority to high regardless of
// its category (an already-urgent request stays urgent).
var urgencyKeywords = []string{"urgent", "asap", "critical"}

// escalationKeywords force escalation to a human agent.
var escalationKeywords = []string{"manager", "supervisor", "human"}

func containsAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// classify picks the category for a message using the ordered rules.
func classify(message string) Category {
	for _, rule := range categoryRules {
		if containsAny(message, rule.keywords) {
			return rule.category
		}
	}
	return CategoryGeneral
}
