package router

import (
	"context"
	"strings"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const (
	IntentHours       = "hours"
	IntentLocation    = "location"
	IntentContact     = "contact"
	IntentServices    = "services"
	IntentProviders   = "providers"
	IntentInsurance   = "insurance"
	IntentForms       = "forms"
	IntentPreparation = "preparation"
	IntentGeneral     = "general"
	IntentOther       = "other"
)

var intents = []string{
	IntentHours, IntentLocation, IntentContact, IntentServices, IntentProviders,
	IntentInsurance, IntentForms, IntentPreparation, IntentGeneral, IntentOther,
}

const intentSystemPrompt = `Classify the patient's question about a healthcare clinic into exactly one category:
hours, location, contact, services, providers, insurance, forms, preparation, general, other.
Reply with the category name only.`

// classifyIntent asks the completer for a category. Failures and
// unrecognized output yield IntentGeneral.
func (r *Router) classifyIntent(ctx context.Context, text string) string {
	if r.complete == nil {
		return IntentGeneral
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.GenerateTimeout)
	defer cancel()

	raw, err := r.complete.Complete(ctx, models.CompletionRequest{
		SystemPrompt: intentSystemPrompt,
		UserPrompt:   text,
		Model:        r.cfg.ChatModel,
		Temperature:  0,
		MaxTokens:    10,
	})
	if err != nil {
		r.upstreamFailed("intent", err)
		return IntentGeneral
	}
	return parseIntent(raw)
}

func parseIntent(raw string) string {
	word := strings.ToLower(strings.TrimSpace(raw))
	word = strings.Trim(word, " .,:;!\"'`")
	for _, intent := range intents {
		if word == intent {
			return intent
		}
	}
	return IntentGeneral
}

var intentFallbacks = map[string]string{
	IntentHours:       "I can help with office hours. For the latest hours and scheduling, please call the clinic directly or check its website.",
	IntentLocation:    "For directions, parking, and location details, please check the clinic's website or call the office.",
	IntentContact:     "You can reach the clinic by phone or through the contact details on its website.",
	IntentServices:    "I can share general information about our services. For details on a specific treatment, please contact the clinic directly.",
	IntentProviders:   "For current information about our providers and staff, please check the clinic's website or contact the office.",
	IntentInsurance:   "Insurance coverage changes often, so please contact the clinic directly about your plan and billing questions.",
	IntentForms:       "For patient forms and documents, please check the clinic's website or contact the office so you have the current versions.",
	IntentPreparation: "Preparation depends on the type of appointment. Please contact the clinic for instructions on what to bring and expect.",
	IntentGeneral:     "I'm here to help with questions about the clinic. For the most accurate and current information, please contact the clinic directly.",
}

func intentFallback(intent string) string {
	if text, ok := intentFallbacks[intent]; ok {
		return text
	}
	return intentFallbacks[IntentGeneral]
}
