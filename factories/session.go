package factories

import (
	"fmt"

	"github.com/bytedance/sonic"

	"handspeak/core"
	"handspeak/handlers/classifier"
	"handspeak/handlers/recorder"
	"handspeak/handlers/sensor"
	"handspeak/handlers/sentence"
	"handspeak/handlers/speech"
	"handspeak/handlers/transport"
	"handspeak/handlers/window"
	"handspeak/history"
	"handspeak/services/backend"
	local "handspeak/services/local/tts"
	openaienhancer "handspeak/services/openai/enhancer"
	"handspeak/services/playback"
)

// SessionClassifierConfig bundles classifier handler config with its service config.
type SessionClassifierConfig struct {
	HandlerConfig classifier.ClassifierConfig `json:"handler" yaml:"handler"`
	ServiceConfig ClassifierFactoryConfig     `json:"service" yaml:"service"`
}

func (c SessionClassifierConfig) BuildHandler(logger *core.Logger) *classifier.ClassifierHandler {
	return classifier.NewClassifierHandler(BuildClassifierService(c.ServiceConfig, logger), c.HandlerConfig, logger)
}

// SessionSentenceConfig bundles sentence assembly, the enhancer and history size.
type SessionSentenceConfig struct {
	HandlerConfig   sentence.SentenceConfig `json:"handler" yaml:"handler"`
	ServiceConfig   EnhancerFactoryConfig   `json:"service" yaml:"service"`
	HistoryCapacity int                     `json:"history_capacity" yaml:"history_capacity"`
}

// BuildHandler constructs a SentenceHandler. A nil store keeps history in memory only.
func (c SessionSentenceConfig) BuildHandler(probe sentence.SpeakingProbe, store history.Store, deviceID string, logger *core.Logger) (*sentence.SentenceHandler, error) {
	enhancer, err := BuildEnhancerService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("sentence enhancer: %w", err)
	}
	handler := sentence.NewSentenceHandler(enhancer, probe, history.NewLog(c.HistoryCapacity), c.HandlerConfig, logger)
	if store != nil {
		handler.WithStore(store, deviceID)
	}
	return handler, nil
}

// SessionSpeechConfig configures the primary voice, the local fallback and playback.
type SessionSpeechConfig struct {
	HandlerConfig speech.SpeechConfig `json:"handler" yaml:"handler"`
	ServiceConfig TTSFactoryConfig    `json:"service" yaml:"service"`
	LocalConfig   local.Config        `json:"local" yaml:"local"`
	// Players overrides the audio players tried for the primary voice.
	Players []playback.Command `json:"players,omitempty" yaml:"players,omitempty"`
}

// BuildArbiter constructs the speaker owner. There is one per process: the
// speaker is shared by every device session.
func (c SessionSpeechConfig) BuildArbiter(logger *core.Logger) *speech.Arbiter {
	primary := BuildSynthesizer(c.ServiceConfig, logger)
	var player speech.Player
	if primary != nil {
		player = playback.NewCommandPlayer(c.Players, logger)
	}
	fallback := local.NewEspeakEngine(c.LocalConfig, logger)
	if !fallback.Available() {
		logger.With(map[string]any{"binary": c.LocalConfig.Binary}).Warn("local speech engine not found on PATH")
	}
	return speech.NewArbiter(primary, player, fallback, c.HandlerConfig, logger)
}

// SessionConfig is the configuration of one device session pipeline.
type SessionConfig struct {
	Device     transport.TransportConfig `json:"device" yaml:"device"`
	Sensor     sensor.SensorConfig       `json:"sensor" yaml:"sensor"`
	Recorder   recorder.RecorderConfig   `json:"recorder" yaml:"recorder"`
	Window     window.WindowConfig       `json:"window" yaml:"window"`
	Classifier SessionClassifierConfig   `json:"classifier" yaml:"classifier"`
	Sentence   SessionSentenceConfig     `json:"sentence" yaml:"sentence"`
	Speech     SessionSpeechConfig       `json:"speech" yaml:"speech"`
}

// DefaultSessionConfig returns a SessionConfig pre-filled with every handler default.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Device:     transport.DefaultConfig(),
		Sensor:     sensor.DefaultConfig(),
		Recorder:   recorder.DefaultConfig(),
		Window:     window.DefaultConfig(),
		Classifier: SessionClassifierConfig{HandlerConfig: classifier.DefaultConfig()},
		Sentence: SessionSentenceConfig{
			HandlerConfig:   sentence.DefaultConfig(),
			HistoryCapacity: history.DefaultCapacity,
		},
		Speech: SessionSpeechConfig{
			HandlerConfig: speech.DefaultConfig(),
			ServiceConfig: DefaultTTSFactoryConfig(),
		},
	}
}

// SessionConfigFromJSON parses a JSON blob into a SessionConfig, starting from
// DefaultSessionConfig so that any fields absent from the JSON retain their defaults.
// API keys should be injected after loading via env vars rather than stored in config files.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// Clone returns a deep copy, so provider configs can be given credentials
// without touching the shared original.
func (c SessionConfig) Clone() (SessionConfig, error) {
	data, err := sonic.Marshal(c)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	var out SessionConfig
	if err := sonic.Unmarshal(data, &out); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	return out, nil
}

// APIKeys holds credentials for every supported remote service.
type APIKeys struct {
	ElevenLabs string
	Gemini     string
	OpenAI     string
	Groq       string
	Together   string
	DeepSeek   string
	OpenRouter string
	Mistral    string
	BackendURL string // Overrides the model server address when set.
}

// InjectAPIKeys applies credentials to configured providers whose key is
// empty, so keys already present in the config file are preserved.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	if el := c.Speech.ServiceConfig.ElevenLabsConfig; el != nil && el.APIKey == "" {
		el.APIKey = keys.ElevenLabs
	}

	svc := &c.Sentence.ServiceConfig
	if svc.GeminiConfig != nil && svc.GeminiConfig.APIKey == "" {
		svc.GeminiConfig.APIKey = keys.Gemini
	}
	injectOpenAIKey(svc.OpenAIConfig, keys.OpenAI)
	injectOpenAIKey(svc.GroqConfig, keys.Groq)
	injectOpenAIKey(svc.TogetherConfig, keys.Together)
	injectOpenAIKey(svc.DeepSeekConfig, keys.DeepSeek)
	injectOpenAIKey(svc.OpenRouterConfig, keys.OpenRouter)
	injectOpenAIKey(svc.MistralConfig, keys.Mistral)

	if keys.BackendURL != "" {
		if *svc == (EnhancerFactoryConfig{}) {
			cfg := backend.DefaultConfig()
			svc.BackendConfig = &cfg
		}
		if svc.BackendConfig != nil {
			svc.BackendConfig.BaseURL = keys.BackendURL
		}
		if c.Classifier.ServiceConfig.BackendConfig == nil {
			cfg := backend.DefaultConfig()
			c.Classifier.ServiceConfig.BackendConfig = &cfg
		}
		c.Classifier.ServiceConfig.BackendConfig.BaseURL = keys.BackendURL
	}
}

func injectOpenAIKey(cfg *openaienhancer.Config, key string) {
	if cfg != nil && cfg.APIKey == "" {
		cfg.APIKey = key
	}
}

// SessionDeps are the process-wide resources a session pipeline shares.
type SessionDeps struct {
	Arbiter  *speech.Arbiter
	History  history.Store
	Recorder *recorder.CSVStore
}

// SessionHandlers holds all constructed handlers ready to be assembled into a Runner pipeline.
//
// Pipeline order:
//
//	TransportInput → Sensor → Recorder → Window → Classifier → Sentence → Speech → TransportOutput
type SessionHandlers struct {
	TransportInput  *transport.TransportInputHandler
	Sensor          *sensor.SensorHandler
	Recorder        *recorder.RecorderHandler
	Window          *window.WindowHandler
	Classifier      *classifier.ClassifierHandler
	Sentence        *sentence.SentenceHandler
	Speech          *speech.SpeechHandler
	TransportOutput *transport.TransportOutputHandler
}

// Ordered returns the handlers in pipeline order.
func (h *SessionHandlers) Ordered() []core.IHandler {
	return []core.IHandler{
		h.TransportInput,
		h.Sensor,
		h.Recorder,
		h.Window,
		h.Classifier,
		h.Sentence,
		h.Speech,
		h.TransportOutput,
	}
}

// BuildHandlers constructs every handler of a device session.
func (c SessionConfig) BuildHandlers(svc transport.ITransportService, deps SessionDeps, logger *core.Logger) (*SessionHandlers, error) {
	if deps.Arbiter == nil {
		deps.Arbiter = c.Speech.BuildArbiter(logger)
	}
	if deps.Recorder == nil {
		store, err := recorder.NewCSVStore(c.Recorder.DataDir, c.Recorder.FileName)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		deps.Recorder = store
	}

	deviceID := svc.DeviceID()
	sentenceHandler, err := c.Sentence.BuildHandler(deps.Arbiter, deps.History, deviceID, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	sensorCfg := c.Sensor
	sensorCfg.DeviceID = deviceID

	wrapper := transport.NewTransportHandlerWrapper(svc, c.Device, logger)
	return &SessionHandlers{
		TransportInput:  wrapper.GetInputHandler(),
		Sensor:          sensor.NewSensorHandler(sensorCfg, logger),
		Recorder:        recorder.NewRecorderHandler(deps.Recorder, c.Recorder, logger),
		Window:          window.NewWindowHandler(c.Window, logger),
		Classifier:      c.Classifier.BuildHandler(logger),
		Sentence:        sentenceHandler,
		Speech:          speech.NewSpeechHandler(deps.Arbiter, logger),
		TransportOutput: wrapper.GetOutputHandler(),
	}, nil
}
