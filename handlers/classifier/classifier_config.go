package classifier

import "time"

type ClassifierConfig struct {
	TimeoutMs int `json:"timeout_ms" yaml:"timeout_ms"` // Upper bound on a single classify call.
}

func DefaultConfig() ClassifierConfig {
	return ClassifierConfig{TimeoutMs: 10000}
}

func (c ClassifierConfig) timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
