package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/"}, option.WithMaxRetries(0))
	require.NoError(t, err)
	return p
}

func TestComplete(t *testing.T) {
	var body map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  We open at 8.  "}}]}`))
	})

	text, err := p.Complete(context.Background(), models.CompletionRequest{
		SystemPrompt: "sys",
		UserPrompt:   "when do you open?",
		Temperature:  0.3,
		MaxTokens:    300,
	})
	require.NoError(t, err)
	assert.Equal(t, "We open at 8.", text)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 300, body["max_tokens"])

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestComplete_NoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	})

	_, err := p.Complete(context.Background(), models.CompletionRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_ServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	})

	_, err := p.Complete(context.Background(), models.CompletionRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai complete")
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-ada-002", body["model"])
		assert.Equal(t, "eye exam cost", body["input"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"text-embedding-ada-002",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5]}],
			"usage":{"prompt_tokens":3,"total_tokens":3}}`))
	})

	vec, err := p.Embed(context.Background(), "eye exam cost")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5}, vec)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.Error(t, err)
}
