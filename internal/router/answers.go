package router

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const (
	cacheSystemPrompt = "You are a healthcare clinic assistant. Answer the patient's question from the clinic information provided. Be concise, accurate and patient-friendly. If the information only partly answers the question, say what you can and suggest contacting the clinic for specifics."
	webSystemPrompt   = "You are a healthcare clinic assistant. Answer the patient's question by combining the information from several pages of the clinic's website. Be accurate and patient-friendly, and mention contacting the clinic for the most current details."
)

func cachedAnswer(d *models.RAGDecision) string {
	summary := strings.TrimSpace(d.BestMatchSummary)
	if summary == "" {
		return "I found some information about your question. Please contact the clinic directly for the most current details."
	}
	if title := strings.TrimSpace(d.BestMatchTitle); title != "" {
		return fmt.Sprintf("From %s: %s", title, summary)
	}
	return summary
}

func webAnswer(summaries []models.PageSummary) string {
	parts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if body := strings.TrimSpace(s.Summary); body != "" {
			parts = append(parts, fmt.Sprintf("From %s: %s", pageTitle(s), body))
		}
	}
	if len(parts) == 0 {
		return "I found relevant information on the clinic's website. Please contact the clinic for specific details."
	}
	return strings.Join(parts, "\n\n")
}

// webSources ranks pages in fetch order with relevance max(0.7-0.1i, 0.5).
func webSources(summaries []models.PageSummary) []Source {
	out := make([]Source, len(summaries))
	for i, s := range summaries {
		out[i] = Source{
			URL:       s.URL,
			Title:     pageTitle(s),
			Relevance: math.Max(0.7-float64(i)*0.1, 0.5),
		}
	}
	return out
}

func pageTitle(s models.PageSummary) string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return s.URL
}

func (r *Router) generateFromCache(ctx context.Context, q Query, d *models.RAGDecision) (string, bool) {
	user := fmt.Sprintf("Question: %s\n\nClinic information (from %s):\n%s\n\nAnswer the question using this information.",
		q.Text, d.BestMatchTitle, d.BestMatchSummary)
	return r.generate(ctx, q, cacheSystemPrompt, user, 300)
}

func (r *Router) generateFromWeb(ctx context.Context, q Query, summaries []models.PageSummary) (string, bool) {
	user := fmt.Sprintf("Question: %s\n\nInformation from the clinic website:\n%s\n\nAnswer the question using this information.",
		q.Text, webAnswer(summaries))
	return r.generate(ctx, q, webSystemPrompt, user, 400)
}

func (r *Router) generate(ctx context.Context, q Query, system, user string, maxTokens int) (string, bool) {
	if q.SystemPrompt != "" {
		system = q.SystemPrompt + "\n\n" + system
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.GenerateTimeout)
	defer cancel()

	text, err := r.complete.Complete(ctx, models.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        r.cfg.ChatModel,
		Temperature:  0.3,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		r.upstreamFailed("generate", err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return strings.TrimSpace(text), true
}
