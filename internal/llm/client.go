package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmptyCompletion is returned when the provider answers with no text.
var ErrEmptyCompletion = errors.New("completion returned no text")

// Params are the sampling parameters for one completion.
type Params struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	Tier        ModelTier
}

// Client is the completion service: a non-deterministic, fallible function
// from prompt to text.
type Client interface {
	// Complete returns generated text for prompt
	Complete(ctx context.Context, prompt string, params Params) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// CompleteFunc adapts a function to the Client interface.
type CompleteFunc func(ctx context.Context, prompt string, params Params) (string, error)

// Complete calls f.
func (f CompleteFunc) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	return f(ctx, prompt, params)
}

// Close is a no-op.
func (f CompleteFunc) Close() error { return nil }

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Complete generates text with the model configured for params.Tier
func (c *GeminiClient) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	modelName := c.config.GetModel(params.Tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", params.Tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(float32(params.Temperature))
	if params.TopP > 0 {
		model.SetTopP(float32(params.TopP))
	}
	if params.TopK > 0 {
		model.SetTopK(int32(params.TopK))
	}
	if params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(resp)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response: %w", ErrEmptyCompletion)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response: %w", ErrEmptyCompletion)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
