package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

var ErrEmptyResponse = errors.New("openai: empty response")

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-ada-002",
	}
}

func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("openai: api key is required")
	}
	return nil
}

// OpenAIProvider serves chat completions and query embeddings.
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
}

func NewOpenAIProvider(config OpenAIConfig, extra ...option.RequestOption) (*OpenAIProvider, error) {
	defaults := DefaultOpenAIConfig()
	if config.ChatModel == "" {
		config.ChatModel = defaults.ChatModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = defaults.EmbeddingModel
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, config: config}, nil
}

func (p *OpenAIProvider) EmbeddingModel() string {
	return p.config.EmbeddingModel
}

// Complete runs a single system+user chat completion. An empty request
// model uses the configured chat model.
func (p *OpenAIProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.config.ChatModel
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(p.config.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}
