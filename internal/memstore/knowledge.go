package memstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const hashDimensions = 256

// Document is one indexed page of a tenant's website.
type Document struct {
	URL       string
	Title     string
	Summary   string
	Embedding []float64
}

func (s *Store) AddDocument(tenantID int, d Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[tenantID] = append(s.docs[tenantID], d)
}

// Score ranks the tenant's documents by cosine similarity to the query
// embedding. Every document URL is recommended, best first.
func (s *Store) Score(_ context.Context, tenantID int, _ string, embedding []float64, threshold float64) (*models.RAGDecision, error) {
	s.mu.RLock()
	docs := append([]Document(nil), s.docs[tenantID]...)
	s.mu.RUnlock()

	decision := &models.RAGDecision{Source: "web_needed", RecommendedURLs: []string{}}
	if len(docs) == 0 {
		return decision, nil
	}

	type scored struct {
		doc   Document
		score float64
	}
	ranked := make([]scored, len(docs))
	for i, d := range docs {
		ranked[i] = scored{doc: d, score: cosineSimilarity(embedding, d.Embedding)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	best := ranked[0]
	decision.ConfidenceScore = math.Max(0, best.score)
	decision.BestMatchURL = best.doc.URL
	decision.BestMatchTitle = best.doc.Title
	decision.BestMatchSummary = best.doc.Summary
	if best.score >= threshold && best.doc.Summary != "" {
		decision.Source = "cache"
		decision.ContentFound = true
	}
	for _, r := range ranked {
		if r.doc.URL != "" {
			decision.RecommendedURLs = append(decision.RecommendedURLs, r.doc.URL)
		}
	}
	return decision, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashEmbedder is a deterministic bag-of-words embedder used when no
// embedding service is configured.
type HashEmbedder struct{}

func (HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	return hashEmbedding(text), nil
}

func hashEmbedding(text string) []float64 {
	vec := make([]float64, hashDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		h := xxhash.Sum64String(w)
		sign := 1.0
		if h&(1<<63) != 0 {
			sign = -1.0
		}
		vec[h%hashDimensions] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
