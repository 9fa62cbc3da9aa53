package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"handspeak/core"
	"handspeak/utils/audio"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1/text-to-speech"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	DefaultModelID = "eleven_monolingual_v2"
)

// VoiceSettings are sent with every request; tones may override them.
type VoiceSettings struct {
	Stability       float64 `json:"stability" yaml:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" yaml:"similarity_boost"`
}

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	VoiceID string `json:"voice_id" yaml:"voice_id"`
	ModelID string `json:"model_id" yaml:"model_id"`

	// Voice settings
	Stability       float64 `json:"stability" yaml:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" yaml:"similarity_boost"`
	// ToneOverrides replaces the default voice settings for specific tones.
	ToneOverrides map[core.Tone]VoiceSettings `json:"tone_overrides" yaml:"tone_overrides"`

	// Encoding is "mp3" (default), "pcm" or "ulaw".
	Encoding   string `json:"encoding" yaml:"encoding"`
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
	TimeoutMs  int    `json:"timeout_ms" yaml:"timeout_ms"`
}

// DefaultToneOverrides are the voice settings tuned per tone. Tones not
// listed use the configured defaults.
func DefaultToneOverrides() map[core.Tone]VoiceSettings {
	return map[core.Tone]VoiceSettings{
		core.ToneProfessional: {Stability: 0.7, SimilarityBoost: 0.8},
		core.TonePersuasive:   {Stability: 0.6, SimilarityBoost: 0.85},
		core.ToneCasual:       {Stability: 0.4, SimilarityBoost: 0.7},
	}
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// ElevenLabsTTS synthesizes one utterance per request over the REST API.
type ElevenLabsTTS struct {
	config   ElevenLabsTTSConfig
	encoding core.AudioEncodingFormat
	logger   *core.Logger
	client   *http.Client
}

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = DefaultVoiceID
	}
	if config.ModelID == "" {
		config.ModelID = DefaultModelID
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.75
	}
	if config.ToneOverrides == nil {
		config.ToneOverrides = DefaultToneOverrides()
	}
	if config.TimeoutMs <= 0 {
		config.TimeoutMs = 10000
	}

	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config:   config,
		encoding: core.ParseAudioEncoding(config.Encoding),
		logger:   logger.With(map[string]any{"service": "elevenlabs-tts"}),
		client:   &http.Client{Timeout: time.Duration(config.TimeoutMs) * time.Millisecond},
	}
}

// WithHTTPClient swaps the transport, e.g. for tests.
func (e *ElevenLabsTTS) WithHTTPClient(hc *http.Client) *ElevenLabsTTS {
	e.client = hc
	return e
}

// outputFormatString converts config encoding + sample rate to ElevenLabs output_format param
func outputFormatString(encoding core.AudioEncodingFormat, sampleRate int) string {
	switch encoding {
	case core.ULAW:
		return "ulaw_8000"
	case core.PCM:
		switch sampleRate {
		case 16000:
			return "pcm_16000"
		case 22050:
			return "pcm_22050"
		case 44100:
			return "pcm_44100"
		default:
			return "pcm_24000"
		}
	default:
		return "mp3_44100_128"
	}
}

func (e *ElevenLabsTTS) Init(_ context.Context) error {
	if e.config.APIKey == "" {
		return errors.New("ElevenLabs API key is required")
	}
	return nil
}

func (e *ElevenLabsTTS) Cleanup() error { return nil }
func (e *ElevenLabsTTS) Reset() error   { return nil }

func (e *ElevenLabsTTS) Name() string { return "elevenlabs" }

func (e *ElevenLabsTTS) voiceSettings(tone core.Tone) VoiceSettings {
	if vs, ok := e.config.ToneOverrides[tone]; ok {
		return vs
	}
	return VoiceSettings{Stability: e.config.Stability, SimilarityBoost: e.config.SimilarityBoost}
}

func (e *ElevenLabsTTS) endpoint() string {
	u := strings.TrimRight(e.config.BaseURL, "/") + "/" + url.PathEscape(e.config.VoiceID)
	q := url.Values{}
	q.Set("output_format", outputFormatString(e.encoding, e.config.SampleRate))
	return u + "?" + q.Encode()
}

// Synthesize returns the whole utterance. Every failure wraps
// core.ErrTransientNetwork so callers can fall back to another engine.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string, tone core.Tone) (core.AudioChunk, error) {
	if e.config.APIKey == "" {
		return core.AudioChunk{}, core.NewNetworkError("synthesize", 0, errors.New("ElevenLabs API key not set"))
	}
	start := time.Now()

	body, err := sonic.Marshal(ttsRequest{Text: text, ModelID: e.config.ModelID, VoiceSettings: e.voiceSettings(tone)})
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(), bytes.NewReader(body))
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.config.APIKey)
	if e.encoding == core.MP3 {
		req.Header.Set("Accept", "audio/mpeg")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return core.AudioChunk{}, core.NewNetworkError("synthesize", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.AudioChunk{}, core.NewNetworkError("synthesize", resp.StatusCode, fmt.Errorf("ElevenLabs API error: %s", strings.TrimSpace(string(msg))))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AudioChunk{}, core.NewNetworkError("synthesize", resp.StatusCode, fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return core.AudioChunk{}, core.NewNetworkError("synthesize", resp.StatusCode, errors.New("empty audio"))
	}

	chunk := e.toChunk(data)
	e.logger.With(map[string]any{
		"voice":           e.config.VoiceID,
		"tone":            tone,
		"audio_bytes":     len(data),
		"processing_time": time.Since(start).String(),
	}).Debug("ElevenLabs synthesis complete")
	return chunk, nil
}

// toChunk normalises the payload; μ-law is decoded to 16-bit PCM so players
// only see PCM or MP3.
func (e *ElevenLabsTTS) toChunk(data []byte) core.AudioChunk {
	now := time.Now()
	switch e.encoding {
	case core.ULAW:
		return core.AudioChunk{Data: audio.ULawBytesToPCM(data), SampleRate: 8000, Channels: 1, Format: core.PCM, Timestamp: now}
	case core.PCM:
		rate := e.config.SampleRate
		if rate == 0 {
			rate = 24000
		}
		return core.AudioChunk{Data: data, SampleRate: rate, Channels: 1, Format: core.PCM, Timestamp: now}
	default:
		return core.AudioChunk{Data: data, SampleRate: 44100, Channels: 1, Format: core.MP3, Timestamp: now}
	}
}
