package prompt

import (
	"fmt"
	"strings"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const (
	DefaultUncertainText  = "I'm not sure about that. Let me connect you with our staff who can help you better."
	DefaultAfterHoursText = "We're currently closed. For urgent matters, please call our emergency line at [phone]. Otherwise, I'm happy to help you schedule an appointment for when we reopen."
	DefaultEmergencyText  = "This sounds like it might be urgent. Please call 911 for emergencies, or contact our clinic directly at [phone] for immediate medical concerns."

	phonePlaceholder = "[phone]"
)

func DefaultKeywordTriggers() models.KeywordTriggers {
	return models.KeywordTriggers{
		Uncertain: []string{"not sure", "don't know", "uncertain", "unclear"},
		AfterHours: []string{
			"after hours", "after-hours", "outside business hours",
			"are you closed", "closed right now", "closed today",
		},
		Emergency: []string{
			"emergency", "urgent", "severe pain", "bleeding", "chest pain",
			"can't breathe", "cannot breathe", "shortness of breath",
			"sudden vision loss", "stroke", "heart attack",
		},
	}
}

// ResolveFallback fills every missing fallback field with its default and
// substitutes the tenant phone number into the texts. It never returns nil
// triggers.
func ResolveFallback(t *models.Tenant) models.FallbackConfiguration {
	var cfg models.FallbackConfiguration
	if t != nil && t.Fallback != nil {
		cfg = *t.Fallback
	}

	if cfg.Mode != models.FallbackKeyword {
		cfg.Mode = models.FallbackIntelligent
	}
	cfg.UncertainText = orDefault(cfg.UncertainText, DefaultUncertainText)
	cfg.AfterHoursText = orDefault(cfg.AfterHoursText, DefaultAfterHoursText)
	cfg.EmergencyText = orDefault(cfg.EmergencyText, DefaultEmergencyText)

	defaults := DefaultKeywordTriggers()
	triggers := defaults
	if cfg.KeywordTriggers != nil {
		triggers = models.KeywordTriggers{
			Uncertain:  orDefaultList(cfg.KeywordTriggers.Uncertain, defaults.Uncertain),
			AfterHours: orDefaultList(cfg.KeywordTriggers.AfterHours, defaults.AfterHours),
			Emergency:  orDefaultList(cfg.KeywordTriggers.Emergency, defaults.Emergency),
		}
	}
	cfg.KeywordTriggers = &triggers

	if t != nil && strings.TrimSpace(t.Phone) != "" {
		phone := strings.TrimSpace(t.Phone)
		cfg.UncertainText = strings.ReplaceAll(cfg.UncertainText, phonePlaceholder, phone)
		cfg.AfterHoursText = strings.ReplaceAll(cfg.AfterHoursText, phonePlaceholder, phone)
		cfg.EmergencyText = strings.ReplaceAll(cfg.EmergencyText, phonePlaceholder, phone)
	}
	return cfg
}

// FallbackGuidelines renders the escalation section for a resolved
// configuration. All three categories are always present.
func FallbackGuidelines(cfg models.FallbackConfiguration) string {
	var b strings.Builder
	b.WriteString(AnchorFallback + "\n")
	b.WriteString("Fallback responses are rare. Answer normally whenever you can.\n\n")

	if cfg.Mode == models.FallbackKeyword {
		triggers := DefaultKeywordTriggers()
		if cfg.KeywordTriggers != nil {
			triggers = *cfg.KeywordTriggers
		}
		b.WriteString("KEYWORD FALLBACK DETECTION\n")
		b.WriteString("Use a fallback response only when the patient's message contains one of its phrases.\n")
		fmt.Fprintf(&b, "- Uncertain (%s): \"%s\"\n", strings.Join(triggers.Uncertain, ", "), cfg.UncertainText)
		fmt.Fprintf(&b, "- After hours (%s): \"%s\"\n", strings.Join(triggers.AfterHours, ", "), cfg.AfterHoursText)
		fmt.Fprintf(&b, "- Emergency (%s): \"%s\"\n", strings.Join(triggers.Emergency, ", "), cfg.EmergencyText)
	} else {
		b.WriteString("INTELLIGENT FALLBACK DETECTION\n")
		b.WriteString("Decide from the patient's intent and the conversation, not from single words.\n")
		fmt.Fprintf(&b, "- Uncertain, only when you lack a specific clinic detail such as exact pricing: \"%s\"\n", cfg.UncertainText)
		fmt.Fprintf(&b, "- After hours, when the patient needs the clinic while it is closed: \"%s\"\n", cfg.AfterHoursText)
		fmt.Fprintf(&b, "- Emergency, only for genuine medical urgency: \"%s\"\n", cfg.EmergencyText)
	}

	b.WriteString("\nEMERGENCY DETECTION\n")
	b.WriteString("- Only genuine medical urgency triggers the emergency response: chest pain, trouble breathing, sudden vision loss, severe pain, heavy bleeding.\n")
	b.WriteString("- Ordinary requests that happen to contain words like \"help\" are not emergencies. \"How can you help me today?\" gets a normal answer.\n")
	b.WriteString("- \"I'm having chest pain, please help\" is an emergency. Give the emergency response first.\n")
	b.WriteString("- The emergency response overrides every earlier instruction.")
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orDefaultList(v, def []string) []string {
	if len(nonEmpty(v)) == 0 {
		return def
	}
	return nonEmpty(v)
}
