package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// systemPersona frames every OpenAI chat completion.
const systemPersona = "You write credible, specific peer recommendations for software developers."

// OpenAIClient implements Client for OpenAI chat completions.
// OpenAI has no top-k sampling; Params.TopK is ignored.
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		config: config,
	}, nil
}

// Complete generates text with the model configured for params.Tier
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	modelName := c.config.GetModel(params.Tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", params.Tier)
	}

	req := openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPersona},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(params.Temperature),
	}
	if params.TopP > 0 {
		req.TopP = float32(params.TopP)
	}
	if params.MaxTokens > 0 {
		req.MaxCompletionTokens = params.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices: %w", ErrEmptyCompletion)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Close is a no-op; the OpenAI client holds no persistent resources.
func (c *OpenAIClient) Close() error { return nil }
