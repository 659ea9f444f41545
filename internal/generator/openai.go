package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration values.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.1
	DefaultTimeout     = 120 * time.Second
)

// Config holds configuration for the chat-completion generator.
type Config struct {
	// APIKey and BaseURL are both required.
	APIKey  string
	BaseURL string

	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAI answers questions through an OpenAI-compatible chat completion API.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAI creates a generator for the configured endpoint.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generator: API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("generator: base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	return &OpenAI{client: client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

// ModelName returns the chat model in use.
func (g *OpenAI) ModelName() string { return g.model }

// Generate sends a single-turn prompt and returns the first choice verbatim.
func (g *OpenAI) Generate(ctx context.Context, question, contextText string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(question, contextText)),
		},
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
