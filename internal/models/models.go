package models

import "time"

type Tenant struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	Specialty        string    `json:"specialty"`
	APIKey           string    `json:"api_key,omitempty"`
	RateLimitPerHour int       `json:"rate_limit_per_hour"`
	Tone             string    `json:"tone"`
	Languages        []string  `json:"languages"`
	AlwaysInclude    []string  `json:"always_include"`
	NeverInclude     []string  `json:"never_include"`
	Phone            string    `json:"phone"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Interview InterviewResponses     `json:"interview_responses"`
	Fallback  *FallbackConfiguration `json:"fallback,omitempty"`
	RAG       *RAGSettings           `json:"rag_settings,omitempty"`
}

// InterviewResponses holds the free-text personality answers collected during
// assistant setup. Empty fields are treated as not customized.
type InterviewResponses struct {
	CommunicationStyle   string `json:"communication_style,omitempty"`
	AnxietyHandling      string `json:"anxiety_handling,omitempty"`
	PracticeUniqueness   string `json:"practice_uniqueness,omitempty"`
	MedicalDetailLevel   string `json:"medical_detail_level,omitempty"`
	EscalationPreference string `json:"escalation_preference,omitempty"`
	CulturalApproach     string `json:"cultural_approach,omitempty"`
	FormalityLevel       string `json:"formality_level,omitempty"`
}

type FallbackMode string

const (
	FallbackIntelligent FallbackMode = "intelligent"
	FallbackKeyword     FallbackMode = "keyword"
)

type KeywordTriggers struct {
	Uncertain  []string `json:"uncertain" yaml:"uncertain"`
	AfterHours []string `json:"after_hours" yaml:"after_hours"`
	Emergency  []string `json:"emergency" yaml:"emergency"`
}

type FallbackConfiguration struct {
	Mode            FallbackMode     `json:"mode"`
	UncertainText   string           `json:"uncertain_text"`
	AfterHoursText  string           `json:"after_hours_text"`
	EmergencyText   string           `json:"emergency_text"`
	KeywordTriggers *KeywordTriggers `json:"keyword_triggers,omitempty"`
}

// RAGSettings is the per-tenant retrieval configuration. A nil value means
// the tenant never configured retrieval and defaults apply. A nil
// EnableWebSearch leaves web search on.
type RAGSettings struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	EnableWebSearch     *bool   `json:"enable_web_search,omitempty"`
	MaxWebPages         int     `json:"max_web_pages"`
	CacheTTLHours       int     `json:"cache_ttl_hours"`
}

type PromptVersion struct {
	ID        int64     `json:"id"`
	TenantID  int       `json:"tenant_id"`
	Version   int       `json:"version"`
	Prompt    string    `json:"prompt_text"`
	Note      string    `json:"version_note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Provider struct {
	ID          int      `json:"id"`
	TenantID    int      `json:"tenant_id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Gender      string   `json:"gender"`
	Specialties []string `json:"specialties"`
	Experience  string   `json:"experience"`
	Bio         string   `json:"bio"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RAGDecision is the local knowledge lookup result for a single query.
type RAGDecision struct {
	Source           string   `json:"source"`
	ContentFound     bool     `json:"content_found"`
	ConfidenceScore  float64  `json:"confidence_score"`
	BestMatchURL     string   `json:"best_match_url"`
	BestMatchTitle   string   `json:"best_match_title"`
	BestMatchSummary string   `json:"best_match_summary"`
	RecommendedURLs  []string `json:"recommended_urls"`
}

type FetchRequest struct {
	Query    string   `json:"query"`
	TenantID int      `json:"clinic_id"`
	MaxPages int      `json:"max_pages"`
	URLs     []string `json:"urls"`
	// CacheTTLHours is how old a stored page summary may be before the
	// fetch service refetches it.
	CacheTTLHours int `json:"cache_ttl_hours,omitempty"`
}

type PageSummary struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type FetchResult struct {
	Summaries  []PageSummary `json:"summaries"`
	CacheHits  int           `json:"cache_hits"`
	NewFetches int           `json:"new_fetches"`
	Errors     []string      `json:"errors"`
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
	MaxTokens    int
}

// QueryLogRecord is written once per routed query and never updated.
type QueryLogRecord struct {
	ID                  string    `json:"id"`
	TenantID            int       `json:"tenant_id"`
	QueryText           string    `json:"query_text"`
	QueryIntent         string    `json:"query_intent"`
	RAGConfidence       float64   `json:"rag_confidence"`
	Branch              string    `json:"branch"`
	Reason              string    `json:"reason"`
	UsedWebSearch       bool      `json:"used_web_search"`
	URLsFetched         []string  `json:"urls_fetched"`
	CacheHit            bool      `json:"cache_hit"`
	TotalResponseTimeMs int64     `json:"total_response_time_ms"`
	FinalConfidence     float64   `json:"final_confidence"`
	Error               string    `json:"error,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type PromptComponents struct {
	BasePrompt            string `json:"base_prompt"`
	PersonalityGuidelines string `json:"personality_guidelines"`
	ToolInstructions      string `json:"tool_instructions"`
	ConversationRules     string `json:"conversation_rules"`
	FallbackGuidelines    string `json:"fallback_guidelines"`
}

type AssembledSystemPrompt struct {
	FullPrompt string           `json:"full_prompt"`
	Components PromptComponents `json:"components"`
}

type IntentCount struct {
	Intent string `json:"intent"`
	Count  int    `json:"count"`
}

type QueryAnalytics struct {
	TenantID          int           `json:"tenant_id"`
	TotalQueries      int           `json:"total_queries"`
	AvgConfidence     float64       `json:"avg_confidence"`
	CacheHitRate      float64       `json:"cache_hit_rate"`
	WebSearchRate     float64       `json:"web_search_rate"`
	AvgResponseTimeMs float64       `json:"avg_response_time_ms"`
	TopIntents        []IntentCount `json:"top_intents"`
}
