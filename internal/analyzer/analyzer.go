package analyzer

import (
	"strings"
	"unicode"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	contextWindow = 3
	queryWindow   = 2
	maxQueryTerms = 3
	minTermLength = 4
)

// Analyzer maps recent conversation text to the tools worth offering the
// model. It holds no mutable state after construction.
type Analyzer struct {
	rules      []Rule
	vocabulary map[string]bool
}

// New validates rules and returns an analyzer that applies them in order.
func New(rules []Rule) (*Analyzer, error) {
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Analyzer{
		rules:      copied,
		vocabulary: normalizeVocabulary(DefaultVocabulary()),
	}, nil
}

func Default() *Analyzer {
	a, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return a
}

// AnalyzeContext returns suggested tools in rule order with duplicates
// removed, keeping the first occurrence.
func (a *Analyzer) AnalyzeContext(messages []models.ChatMessage) []ToolID {
	text := windowText(messages, contextWindow)

	seen := make(map[ToolID]bool)
	suggested := []ToolID{}
	for _, rule := range a.rules {
		if !containsAny(text, rule.Keywords) {
			continue
		}
		for _, tool := range rule.Tools {
			if !seen[tool] {
				seen[tool] = true
				suggested = append(suggested, tool)
			}
		}
	}
	return suggested
}

// ToolPriority ranks suggested tools; the first suggestion gets the highest
// number.
func (a *Analyzer) ToolPriority(messages []models.ChatMessage) map[ToolID]int {
	tools := a.AnalyzeContext(messages)
	priority := make(map[ToolID]int, len(tools))
	for i, tool := range tools {
		priority[tool] = len(tools) - i
	}
	return priority
}

// BuildContextualQuery appends up to three vocabulary terms from the last two
// messages to query.
func (a *Analyzer) BuildContextualQuery(query string, messages []models.ChatMessage) string {
	text := windowText(messages, queryWindow)

	var terms []string
	seen := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if len(word) < minTermLength || !a.vocabulary[word] || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
		if len(terms) == maxQueryTerms {
			break
		}
	}

	if len(terms) == 0 {
		return query
	}
	return strings.TrimSpace(query + " " + strings.Join(terms, " "))
}

// windowText joins the lowercased content of the last n messages.
func windowText(messages []models.ChatMessage, n int) string {
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, lowerString(m.Content))
	}
	return strings.Join(parts, " ")
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// lowerString uses a fresh Caser per call since Casers are not safe for
// concurrent use.
func lowerString(s string) string {
	return cases.Lower(language.Und).String(s)
}
