package window

import "time"

const DefaultWindowLength = 100

type WindowConfig struct {
	Length        int `json:"length" yaml:"length"`                 // Frames per classification window.
	CooldownMs    int `json:"cooldown_ms" yaml:"cooldown_ms"`       // Refractory period after a dispatch.
	ProgressEvery int `json:"progress_every" yaml:"progress_every"` // Emit a progress event every n accepted frames; zero disables.
}

func DefaultConfig() WindowConfig {
	return WindowConfig{
		Length:        DefaultWindowLength,
		CooldownMs:    1000,
		ProgressEvery: 10,
	}
}

func (c WindowConfig) cooldown() time.Duration {
	if c.CooldownMs < 0 {
		return 0
	}
	return time.Duration(c.CooldownMs) * time.Millisecond
}
