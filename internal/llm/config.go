// Package llm provides the completion-service abstraction used by the
// generator, with Gemini and OpenAI implementations and a rate-limited wrapper.
package llm

import "fmt"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short, low-stakes completions
	TierLite ModelTier = "lite"
	// TierStandard is the default tier for recommendation drafts
	TierStandard ModelTier = "standard"
	// TierAdvanced is for refinement, where instruction following matters most
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the OpenAI provider
	ProviderOpenAI Provider = "openai"
)

// ParseProvider converts a config or flag value into a Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case "", ProviderGemini:
		return ProviderGemini, nil
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	}
	return "", fmt.Errorf("unknown LLM provider %q", s)
}

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// RequestsPerMinute bounds upstream calls when the client is wrapped in
	// RateLimited. Zero disables limiting.
	RequestsPerMinute int
}

// DefaultConfig returns the default configuration (Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultConfigFor returns the default configuration for a provider.
func DefaultConfigFor(provider Provider) *Config {
	if provider == ProviderOpenAI {
		return DefaultOpenAIConfig()
	}
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		RequestsPerMinute: 60,
	}
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o",
			TierAdvanced: "gpt-4.1",
		},
		RequestsPerMinute: 60,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return "" // No model configured
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:          c.Provider,
		Models:            make(map[ModelTier]string),
		RequestsPerMinute: c.RequestsPerMinute,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
