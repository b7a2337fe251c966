package analyzer

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToolID names a structured data-retrieval tool exposed to the model.
type ToolID string

const (
	ToolClinicServices      ToolID = "get_clinic_services"
	ToolClinicHours         ToolID = "get_clinic_hours"
	ToolAppointmentPolicies ToolID = "get_appointment_policies"
	ToolInsuranceInfo       ToolID = "get_insurance_info"
	ToolContactInfo         ToolID = "get_contact_info"
	ToolProviderInfo        ToolID = "get_provider_info"
	ToolConditionsTreated   ToolID = "get_conditions_treated"
)

// KnownTools lists every tool in declaration order.
var KnownTools = []ToolID{
	ToolClinicServices,
	ToolClinicHours,
	ToolAppointmentPolicies,
	ToolInsuranceInfo,
	ToolContactInfo,
	ToolProviderInfo,
	ToolConditionsTreated,
}

func (t ToolID) Valid() bool {
	for _, known := range KnownTools {
		if t == known {
			return true
		}
	}
	return false
}

// Rule suggests Tools when any Keyword occurs as a substring of the
// lowercased conversation window.
type Rule struct {
	Name     string   `yaml:"name"`
	Tools    []ToolID `yaml:"tools"`
	Keywords []string `yaml:"keywords"`
}

func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "services",
			Tools:    []ToolID{ToolClinicServices},
			Keywords: []string{"service", "services", "treatment", "procedure", "surgery", "exam"},
		},
		{
			Name:     "hours",
			Tools:    []ToolID{ToolClinicHours, ToolAppointmentPolicies},
			Keywords: []string{"hours", "open", "closed", "schedule", "appointment", "time"},
		},
		{
			Name:     "insurance",
			Tools:    []ToolID{ToolInsuranceInfo},
			Keywords: []string{"insurance", "coverage", "plan", "pay", "payment", "cost", "bill"},
		},
		{
			Name:     "contact",
			Tools:    []ToolID{ToolContactInfo},
			Keywords: []string{"phone", "call", "contact", "address", "location", "reach"},
		},
		{
			Name:     "provider",
			Tools:    []ToolID{ToolProviderInfo},
			Keywords: []string{"doctor", "provider", "specialist", "experience", "background"},
		},
		{
			Name:     "conditions",
			Tools:    []ToolID{ToolConditionsTreated},
			Keywords: []string{"condition", "disease", "symptoms", "diagnosis", "treat"},
		},
	}
}

// DefaultVocabulary is the eye-care term list used by BuildContextualQuery.
func DefaultVocabulary() []string {
	return []string{
		"eye", "vision", "cataract", "glaucoma", "diabetes", "surgery",
		"exam", "screening", "treatment", "glasses", "contact", "lens",
	}
}

func validateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("at least one rule is required")
	}
	for i, r := range rules {
		if len(r.Tools) == 0 {
			return fmt.Errorf("rule %d (%s): no tools", i, r.Name)
		}
		for _, tool := range r.Tools {
			if !tool.Valid() {
				return fmt.Errorf("rule %d (%s): unknown tool %q", i, r.Name, tool)
			}
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %d (%s): no keywords", i, r.Name)
		}
		for _, kw := range r.Keywords {
			if kw == "" || strings.TrimSpace(kw) != kw {
				return fmt.Errorf("rule %d (%s): blank or padded keyword %q", i, r.Name, kw)
			}
			if lowerString(kw) != kw {
				return fmt.Errorf("rule %d (%s): keyword %q must be lowercase", i, r.Name, kw)
			}
		}
	}
	return nil
}

type rulesFile struct {
	Rules      []Rule   `yaml:"rules"`
	Vocabulary []string `yaml:"vocabulary"`
}

// LoadFile reads rules and an optional vocabulary from a YAML file.
func LoadFile(path string) (*Analyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analyzer rules: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse analyzer rules: %w", err)
	}

	a, err := New(f.Rules)
	if err != nil {
		return nil, err
	}
	if len(f.Vocabulary) > 0 {
		a.vocabulary = normalizeVocabulary(f.Vocabulary)
	}
	return a, nil
}

func normalizeVocabulary(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(lowerString(w)); w != "" {
			out[w] = true
		}
	}
	return out
}
