package enhancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"handspeak/core"
)

// Config holds the configuration for the OpenAI enhancer
type Config struct {
	APIKey      string  `json:"api_key" yaml:"api_key"`
	Model       string  `json:"model" yaml:"model"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	TimeoutMs   int     `json:"timeout_ms" yaml:"timeout_ms"`
}

func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   256,
		Temperature: 0.4,
		TimeoutMs:   10000,
	}
}

// OpenAIEnhancer implements core.TextEnhancer with a chat completion
type OpenAIEnhancer struct {
	config Config
	client *openai.Client
	logger *core.Logger
	mu     sync.RWMutex
}

func NewOpenAIEnhancer(config Config, logger *core.Logger) *OpenAIEnhancer {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAIEnhancer{
		config: config,
		logger: logger.With(map[string]any{"service": "openai-enhancer"}),
	}
}

func (s *OpenAIEnhancer) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}
	cfg := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		cfg.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(cfg)
	s.logger.With(map[string]any{"model": s.config.Model}).Info("enhancer ready")
	return nil
}

func (s *OpenAIEnhancer) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	return nil
}

func (s *OpenAIEnhancer) Reset() error { return nil }

func (s *OpenAIEnhancer) timeout() time.Duration {
	if s.config.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.config.TimeoutMs) * time.Millisecond
}

func (s *OpenAIEnhancer) Enhance(ctx context.Context, text string, tone core.Tone) (core.Enhancement, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return core.Enhancement{}, errors.New("OpenAI enhancer not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: core.EnhancerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: core.TonePrompt(tone, text)},
		},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		status := 0
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.HTTPStatusCode
		}
		return core.Enhancement{}, core.NewNetworkError("enhance", status, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return core.Enhancement{}, core.NewNetworkError("enhance", 0, errors.New("empty completion"))
	}

	return core.Enhancement{
		Original:         text,
		GrammarCorrected: text,
		ToneAdjusted:     strings.TrimSpace(resp.Choices[0].Message.Content),
		Tone:             tone,
	}, nil
}
