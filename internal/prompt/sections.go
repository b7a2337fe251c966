package prompt

import (
	"fmt"
	"strings"

	"github.com/samibismar/calmclinic.health-sub001/internal/analyzer"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const (
	AnchorTools        = "TOOL USAGE RULES"
	AnchorConversation = "CONVERSATION QUALITY RULES"
	AnchorFallback     = "FALLBACK & ESCALATION BEHAVIOR"
	anchorPersonality  = "PERSONALITY & CONFIGURATION"
	anchorProvider     = "PROVIDER CONTEXT"

	webSearchTool = "web_search_preview"
)

// SectionName identifies one layer of the assembled prompt.
type SectionName string

const (
	SectionBase         SectionName = "base"
	SectionPersonality  SectionName = "personality"
	SectionTools        SectionName = "tools"
	SectionConversation SectionName = "conversation"
	SectionFallback     SectionName = "fallback"
)

// Order is the fixed assembly order.
var Order = []SectionName{
	SectionBase,
	SectionPersonality,
	SectionTools,
	SectionConversation,
	SectionFallback,
}

type Section struct {
	Name SectionName
	Body string
}

// Join concatenates non-empty sections with a blank line between them.
func Join(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if body := strings.TrimSpace(s.Body); body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n\n")
}

func DefaultBasePrompt(clinicName, specialty string) string {
	if strings.TrimSpace(clinicName) == "" {
		clinicName = "this clinic"
	}
	if strings.TrimSpace(specialty) == "" {
		specialty = "healthcare"
	}
	return fmt.Sprintf(`You are a helpful AI assistant for %s, a %s practice. You answer questions about the clinic and help patients get ready for their appointments. You are warm and knowledgeable about general topics related to %s.

You do not give medical advice, diagnoses, or treatment recommendations. You help patients understand what to expect at their visit and share general information about the practice.

Be accurate and empathetic, and keep the tone of a professional healthcare setting.`,
		clinicName, specialty, strings.ToLower(specialty))
}

// PersonalityGuidelines renders one directive per customized tenant field.
// It returns "" when nothing is customized.
func PersonalityGuidelines(t *models.Tenant) string {
	if t == nil {
		return ""
	}

	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, "- "+fmt.Sprintf(format, args...))
	}

	if langs := nonEmpty(t.Languages); len(langs) > 0 && !englishOnly(langs) {
		add("SUPPORTED LANGUAGES: %s. Reply in the language the patient writes in.", strings.Join(langs, ", "))
	}
	if items := nonEmpty(t.AlwaysInclude); len(items) > 0 {
		add("ALWAYS INCLUDE: %s.", strings.Join(items, ", "))
	}
	if items := nonEmpty(t.NeverInclude); len(items) > 0 {
		add("DO NOT INCLUDE: %s.", strings.Join(items, ", "))
	}

	iv := t.Interview
	switch {
	case strings.TrimSpace(iv.CommunicationStyle) != "":
		add("COMMUNICATION STYLE: %s. Never sound robotic or repetitive.", strings.TrimSpace(iv.CommunicationStyle))
	case strings.TrimSpace(t.Tone) != "" && !strings.EqualFold(strings.TrimSpace(t.Tone), "professional"):
		add("COMMUNICATION STYLE: %s. Never sound robotic or repetitive.", strings.TrimSpace(t.Tone))
	}

	fields := []struct {
		label string
		value string
	}{
		{"ANXIOUS PATIENTS", iv.AnxietyHandling},
		{"WHAT MAKES THIS PRACTICE DIFFERENT", iv.PracticeUniqueness},
		{"MEDICAL DETAIL LEVEL", iv.MedicalDetailLevel},
		{"ESCALATION PREFERENCE", iv.EscalationPreference},
		{"CULTURAL APPROACH", iv.CulturalApproach},
		{"FORMALITY", iv.FormalityLevel},
	}
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			add("%s: %s", f.label, v)
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return anchorPersonality + "\n" + strings.Join(lines, "\n")
}

// ProviderContext describes the provider the patient is seeing.
func ProviderContext(p *models.Provider) string {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return ""
	}

	subject, possessive := "they", "their"
	switch strings.ToLower(strings.TrimSpace(p.Gender)) {
	case "male":
		subject, possessive = "he", "his"
	case "female":
		subject, possessive = "she", "her"
	}

	var b strings.Builder
	b.WriteString(anchorProvider + "\n")
	fmt.Fprintf(&b, "- You are speaking with a patient of %s.\n", providerDisplayName(p))
	fmt.Fprintf(&b, "- Refer to the provider with %s/%s pronouns.", subject, possessive)
	if specs := nonEmpty(p.Specialties); len(specs) > 0 {
		fmt.Fprintf(&b, "\n- Specialties: %s.", strings.Join(specs, ", "))
	}
	if isEyeCare(p.Specialties) {
		b.WriteString("\n\nDOMAIN CONTEXT\n")
		b.WriteString("- Keep to vision, eye health, and preparing for ophthalmology or optometry visits.\n")
		b.WriteString("- Be ready to explain exams, screenings, symptoms, common eye conditions, and everyday eye care.")
	}
	return b.String()
}

func ToolInstructions() string {
	var b strings.Builder
	b.WriteString(AnchorTools + "\n")
	b.WriteString("- Use tools for clinic-specific facts such as hours, services, insurance, contact details, and providers.\n")
	b.WriteString("- Always prefer the clinic's structured tools over open web search. Use " + webSearchTool + " only when no clinic tool covers the question.\n")
	b.WriteString("- Answer general knowledge questions without tools.\n")
	b.WriteString("- On follow-ups, decide whether the earlier tool result already answers the question before calling a tool again.\n")
	b.WriteString("\nAVAILABLE TOOLS:")
	for _, tool := range analyzer.KnownTools {
		b.WriteString("\n- " + string(tool))
	}
	b.WriteString("\n- " + webSearchTool)
	return b.String()
}

func ConversationRules() string {
	return AnchorConversation + `
- Keep context: build on the previous reply and the patient's intent, especially in follow-ups.
- Do not repeat a sentence from an earlier message. Every reply should move the conversation forward.
- Match the patient's tone. Stay warm and human.
- Be concise. Use short paragraphs and simple dash bullets, one item per line, no headings.
- Combine tool results with general knowledge when the patient asks for examples or explanations.
- For medical questions, start with empathy and general, non-diagnostic information, then recommend the patient discuss specifics with their provider.
- Escalate to clinic staff when a question needs a clinician's judgment or information you do not have.`
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func englishOnly(langs []string) bool {
	return len(langs) == 1 && strings.EqualFold(langs[0], "english")
}

func providerDisplayName(p *models.Provider) string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t + " " + strings.TrimSpace(p.Name)
	}
	return strings.TrimSpace(p.Name)
}

func isEyeCare(specialties []string) bool {
	for _, s := range specialties {
		s = strings.ToLower(s)
		if strings.Contains(s, "ophthalmology") || strings.Contains(s, "optometry") || strings.Contains(s, "eye") {
			return true
		}
	}
	return false
}
