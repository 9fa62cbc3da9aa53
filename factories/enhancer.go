package factories

import (
	"errors"

	"handspeak/core"
	"handspeak/handlers/sentence"
	"handspeak/services/backend"
	backendenhancer "handspeak/services/backend/enhancer"
	geminienhancer "handspeak/services/gemini/enhancer"
	openaienhancer "handspeak/services/openai/enhancer"
)

// EnhancerFactoryConfig selects the text enhancer. Set exactly one provider
// config; the rest should be left nil. Every non-OpenAI chat provider speaks
// the OpenAI protocol and is served by the same client with its own base URL.
type EnhancerFactoryConfig struct {
	BackendConfig    *backend.Config        `json:"backend,omitempty" yaml:"backend,omitempty"`
	GeminiConfig     *geminienhancer.Config `json:"gemini,omitempty" yaml:"gemini,omitempty"`
	OpenAIConfig     *openaienhancer.Config `json:"openai,omitempty" yaml:"openai,omitempty"`
	GroqConfig       *openaienhancer.Config `json:"groq,omitempty" yaml:"groq,omitempty"`
	TogetherConfig   *openaienhancer.Config `json:"together,omitempty" yaml:"together,omitempty"`
	DeepSeekConfig   *openaienhancer.Config `json:"deepseek,omitempty" yaml:"deepseek,omitempty"`
	OpenRouterConfig *openaienhancer.Config `json:"openrouter,omitempty" yaml:"openrouter,omitempty"`
	MistralConfig    *openaienhancer.Config `json:"mistral,omitempty" yaml:"mistral,omitempty"`
}

// Default base URLs for OpenAI-compatible providers.
const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	togetherBaseURL   = "https://api.together.xyz/v1"
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
	mistralBaseURL    = "https://api.mistral.ai/v1"
)

// BuildEnhancerService constructs the configured enhancer. With no provider
// set it posts to the HandSpeak model server at its default address.
func BuildEnhancerService(config EnhancerFactoryConfig, logger *core.Logger) (sentence.EnhancerService, error) {
	if config == (EnhancerFactoryConfig{}) {
		return backendenhancer.NewHTTPEnhancer(backend.DefaultConfig(), logger), nil
	}
	switch {
	case config.BackendConfig != nil:
		return backendenhancer.NewHTTPEnhancer(*config.BackendConfig, logger), nil
	case config.GeminiConfig != nil:
		return geminienhancer.NewGeminiEnhancer(*config.GeminiConfig, logger), nil
	case config.OpenAIConfig != nil:
		return openaienhancer.NewOpenAIEnhancer(*config.OpenAIConfig, logger), nil
	case config.GroqConfig != nil:
		return buildOpenAICompatible(*config.GroqConfig, groqBaseURL, "llama-3.1-8b-instant", logger), nil
	case config.TogetherConfig != nil:
		return buildOpenAICompatible(*config.TogetherConfig, togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger), nil
	case config.DeepSeekConfig != nil:
		return buildOpenAICompatible(*config.DeepSeekConfig, deepseekBaseURL, "deepseek-chat", logger), nil
	case config.OpenRouterConfig != nil:
		return buildOpenAICompatible(*config.OpenRouterConfig, openrouterBaseURL, "openai/gpt-4o-mini", logger), nil
	case config.MistralConfig != nil:
		return buildOpenAICompatible(*config.MistralConfig, mistralBaseURL, "mistral-small-latest", logger), nil
	}
	return nil, errors.New("EnhancerFactoryConfig: no provider config specified")
}

// buildOpenAICompatible applies the provider's base URL and model unless
// the config sets them explicitly.
func buildOpenAICompatible(cfg openaienhancer.Config, defaultBaseURL, defaultModel string, logger *core.Logger) *openaienhancer.OpenAIEnhancer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaienhancer.NewOpenAIEnhancer(cfg, logger)
}
