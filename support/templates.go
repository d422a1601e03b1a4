package support

import "fmt"

// responseTemplates holds the canned reply for each category. They
// are the fallback whenever the generation collaborator is absent or
// failing.
var responseTemplates = map[Category]string{
	CategoryAuthentication: "To reset your password, please click 'Forgot Password' on the login page and follow the instructions.",
	CategoryBilling:        "For billing inquiries, please check your account settings or contact our billing team at billing@company.com",
	CategoryTechnical:      "I've logged this technical issue for our engineering team. You should receive an update within 24 hours.",
	CategoryComplaint:      "I sincerely apologize for your experience. Let me escalate this to our customer success team immediately.",
	CategoryGeneral:        "Thank you for contacting us. I'll make sure you get the help you need.",
}

// defaultTemplate answers requests whose category has no template.
const defaultTemplate = "Thank you for your message. We'll get back to you soon."

// templateFor returns the canned reply for the category, falling back
// to the default template.
func templateFor(c Category) string {
	if tmpl, ok := responseTemplates[c]; ok {
		return tmpl
	}
	return defaultTemplate
}

// apology is the user-facing reply on the error path.
func apology(cause string) string {
	return fmt.Sprintf("I'm sorry, there was an issue processing your request: %s. Please try again or contact support directly.", cause)
}

// ticketNotice is appended to the response once a ticket exists.
func ticketNotice(ticketID string) string {
	return fmt.Sprintf("\n\nSupport ticket %s has been created. A human agent will contact you within 2 hours.", ticketID)
}

// generationPrompt frames the customer message for the generation
// collaborator.
func generationPrompt(s *State) string {
	return fmt.Sprintf("You are a helpful support agent. Customer message: %q (Category: %s, Priority: %s). Provide a brief, helpful response (1-2 sentences).",
		s.Input, s.Category, s.Priority)
}
