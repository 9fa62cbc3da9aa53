package speech

import (
	"time"

	"handspeak/core"
)

// Prosody parameterizes the local engine. 1.0 is the engine default.
type Prosody struct {
	Rate  float64 `json:"rate" yaml:"rate"`
	Pitch float64 `json:"pitch" yaml:"pitch"`
}

type SpeechConfig struct {
	SynthesisTimeoutMs int                   `json:"synthesis_timeout_ms" yaml:"synthesis_timeout_ms"`
	PlaybackTimeoutMs  int                   `json:"playback_timeout_ms" yaml:"playback_timeout_ms"` // Upper bound on one utterance, either engine.
	Prosody            map[core.Tone]Prosody `json:"prosody" yaml:"prosody"`
}

func DefaultProsody() map[core.Tone]Prosody {
	return map[core.Tone]Prosody{
		core.ToneFriendly:     {Rate: 1.0, Pitch: 1.0},
		core.ToneProfessional: {Rate: 0.9, Pitch: 0.9},
		core.TonePersuasive:   {Rate: 1.1, Pitch: 1.1},
		core.ToneCasual:       {Rate: 1.0, Pitch: 1.0},
	}
}

func DefaultConfig() SpeechConfig {
	return SpeechConfig{
		SynthesisTimeoutMs: 10000,
		PlaybackTimeoutMs:  60000,
		Prosody:            DefaultProsody(),
	}
}

// prosody falls back to the default tone, then to 1.0/1.0.
func (c SpeechConfig) prosody(tone core.Tone) Prosody {
	if p, ok := c.Prosody[tone]; ok {
		return p
	}
	if p, ok := c.Prosody[core.DefaultTone]; ok {
		return p
	}
	return Prosody{Rate: 1.0, Pitch: 1.0}
}

func (c SpeechConfig) synthesisTimeout() time.Duration {
	if c.SynthesisTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SynthesisTimeoutMs) * time.Millisecond
}

func (c SpeechConfig) playbackTimeout() time.Duration {
	if c.PlaybackTimeoutMs <= 0 {
		return time.Minute
	}
	return time.Duration(c.PlaybackTimeoutMs) * time.Millisecond
}
