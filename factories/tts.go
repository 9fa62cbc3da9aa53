package factories

import (
	"handspeak/core"
	"handspeak/handlers/speech"
	elevenlabs "handspeak/services/elevenlabs/tts"
)

// TTSFactoryConfig configures the networked primary voice. Leaving every
// provider nil runs on the local engine alone.
type TTSFactoryConfig struct {
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty" yaml:"elevenlabs,omitempty"`
}

func DefaultTTSFactoryConfig() TTSFactoryConfig {
	return TTSFactoryConfig{
		ElevenLabsConfig: &elevenlabs.ElevenLabsTTSConfig{
			ToneOverrides: elevenlabs.DefaultToneOverrides(),
			TimeoutMs:     10000,
		},
	}
}

// BuildSynthesizer returns the primary engine, or nil when none is configured.
func BuildSynthesizer(config TTSFactoryConfig, logger *core.Logger) speech.Synthesizer {
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger)
	}
	return nil
}
