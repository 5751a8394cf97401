package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hexleaf/prodex/internal/logger"
)

// OpenAIClient implements Client against the OpenAI Chat Completions API.
// Setting BaseURL allows any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client openai.Client
	cfg    Config
}

// NewOpenAI creates an OpenAI-backed client.
func NewOpenAI(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Model == "" {
		cfg.Model = string(openai.ChatModelGPT4o)
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

// Complete sends a single-turn completion request.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	model := p.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}

	logger.Debug("openai completion starting",
		"model", model,
		"prompt_size", len(prompt),
		"max_tokens", maxTokens)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(p.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	logger.Debug("openai completion done",
		"model", resp.Model,
		"response_size", len(content))
	return content, nil
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return "openai"
}
