package prompt

import (
	"strings"
	"unicode"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Trigger string

const (
	TriggerNone       Trigger = ""
	TriggerUncertain  Trigger = "uncertain"
	TriggerAfterHours Trigger = "after_hours"
	TriggerEmergency  Trigger = "emergency"
)

// DetectTrigger matches whole-word trigger phrases in message. Emergency
// wins over after-hours, which wins over uncertain.
func DetectTrigger(message string, cfg models.FallbackConfiguration) Trigger {
	triggers := DefaultKeywordTriggers()
	if cfg.KeywordTriggers != nil {
		triggers = *cfg.KeywordTriggers
	}

	text := " " + normalize(message) + " "
	ordered := []struct {
		trigger Trigger
		phrases []string
	}{
		{TriggerEmergency, triggers.Emergency},
		{TriggerAfterHours, triggers.AfterHours},
		{TriggerUncertain, triggers.Uncertain},
	}
	for _, o := range ordered {
		for _, phrase := range o.phrases {
			p := normalize(phrase)
			if p != "" && strings.Contains(text, " "+p+" ") {
				return o.trigger
			}
		}
	}
	return TriggerNone
}

// Text returns the configured response for a trigger.
func (t Trigger) Text(cfg models.FallbackConfiguration) string {
	switch t {
	case TriggerEmergency:
		return cfg.EmergencyText
	case TriggerAfterHours:
		return cfg.AfterHoursText
	case TriggerUncertain:
		return cfg.UncertainText
	}
	return ""
}

// normalize lowercases s and collapses everything but letters, digits and
// apostrophes into single spaces.
func normalize(s string) string {
	s = cases.Lower(language.Und).String(s)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	return strings.Join(fields, " ")
}
