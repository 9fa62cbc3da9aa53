package enhancer

import (
	"context"
	"fmt"
	"strings"

	"handspeak/core"
	"handspeak/services/backend"
)

const enhancePath = "/enhance-text"

type enhanceRequest struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

type enhanceReply struct {
	GrammarCorrected *string `json:"grammar_corrected"`
	ToneAdjusted     *string `json:"tone_adjusted"`
	Error            any     `json:"error,omitempty"`
}

// HTTPEnhancer delegates to the model server's POST /enhance-text.
type HTTPEnhancer struct {
	client *backend.Client
	logger *core.Logger
}

func NewHTTPEnhancer(cfg backend.Config, logger *core.Logger) *HTTPEnhancer {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &HTTPEnhancer{
		client: backend.NewClient(cfg),
		logger: logger.With(map[string]any{"service": "backend-enhancer"}),
	}
}

func (e *HTTPEnhancer) Client() *backend.Client { return e.client }

func (e *HTTPEnhancer) Init(_ context.Context) error {
	e.logger.With(map[string]any{"url": e.client.BaseURL() + enhancePath}).Info("enhancer ready")
	return nil
}

func (e *HTTPEnhancer) Cleanup() error { return nil }
func (e *HTTPEnhancer) Reset() error   { return nil }

// Enhance fails on an {"error"} reply even when the server also echoes the
// original text, so callers can tell a fallback from a real enhancement.
func (e *HTTPEnhancer) Enhance(ctx context.Context, text string, tone core.Tone) (core.Enhancement, error) {
	var reply enhanceReply
	req := enhanceRequest{Text: text, Tone: tone.Upper()}
	if err := e.client.PostJSON(ctx, "enhance", enhancePath, req, &reply); err != nil {
		return core.Enhancement{}, err
	}
	if reply.Error != nil {
		return core.Enhancement{}, core.NewNetworkError("enhance", 0, fmt.Errorf("%v", reply.Error))
	}
	if reply.ToneAdjusted == nil || strings.TrimSpace(*reply.ToneAdjusted) == "" {
		return core.Enhancement{}, core.NewNetworkError("enhance", 0, fmt.Errorf("reply has no tone_adjusted text"))
	}

	corrected := text
	if reply.GrammarCorrected != nil && strings.TrimSpace(*reply.GrammarCorrected) != "" {
		corrected = *reply.GrammarCorrected
	}
	return core.Enhancement{
		Original:         text,
		GrammarCorrected: corrected,
		ToneAdjusted:     strings.TrimSpace(*reply.ToneAdjusted),
		Tone:             tone,
	}, nil
}
