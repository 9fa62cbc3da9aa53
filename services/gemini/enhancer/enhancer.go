// Package enhancer restyles sentences with Gemini directly, without the model
// server in between.
package enhancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"handspeak/core"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 15 * time.Second
)

type Config struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	Model     string `json:"model" yaml:"model"`
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms"`
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

type GeminiEnhancer struct {
	config Config
	client *genai.Client
	logger *core.Logger
}

func NewGeminiEnhancer(config Config, logger *core.Logger) *GeminiEnhancer {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &GeminiEnhancer{
		config: config,
		logger: logger.With(map[string]any{"service": "gemini-enhancer"}),
	}
}

func (g *GeminiEnhancer) Init(ctx context.Context) error {
	if g.config.APIKey == "" {
		return errors.New("gemini API key is required")
	}
	cc := &genai.ClientConfig{APIKey: g.config.APIKey, Backend: genai.BackendGeminiAPI}
	if g.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return fmt.Errorf("genai client: %w", err)
	}
	g.client = client
	g.logger.With(map[string]any{"model": g.config.Model}).Info("enhancer ready")
	return nil
}

func (g *GeminiEnhancer) Cleanup() error { return nil }
func (g *GeminiEnhancer) Reset() error   { return nil }

func (g *GeminiEnhancer) timeout() time.Duration {
	if g.config.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(g.config.TimeoutMs) * time.Millisecond
}

// Enhance issues one tone-adjustment request; the grammar-corrected text is
// the input itself.
func (g *GeminiEnhancer) Enhance(ctx context.Context, text string, tone core.Tone) (core.Enhancement, error) {
	if g.client == nil {
		return core.Enhancement{}, errors.New("gemini enhancer not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(core.EnhancerSystemPrompt)}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, []*genai.Content{
		{Parts: []*genai.Part{{Text: core.TonePrompt(tone, text)}}, Role: "user"},
	}, cfg)
	if err != nil {
		return core.Enhancement{}, core.NewNetworkError("enhance", 0, err)
	}

	out := strings.TrimSpace(responseText(resp))
	if out == "" {
		return core.Enhancement{}, core.NewNetworkError("enhance", 0, errors.New("empty completion"))
	}
	return core.Enhancement{
		Original:         text,
		GrammarCorrected: text,
		ToneAdjusted:     out,
		Tone:             tone,
	}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
