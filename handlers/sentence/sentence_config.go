package sentence

import "time"

const DefaultNoGestureLabel = "No gesture"

type SentenceConfig struct {
	// NoGestureLabel is compared case-insensitively against classifier labels.
	NoGestureLabel      string `json:"no_gesture_label" yaml:"no_gesture_label"`
	InactivityTimeoutMs int    `json:"inactivity_timeout_ms" yaml:"inactivity_timeout_ms"`
	// While speech is active a due finalize is retried at this interval, at
	// most FinalizeMaxRetries times, after which it proceeds regardless.
	FinalizeRetryIntervalMs int `json:"finalize_retry_interval_ms" yaml:"finalize_retry_interval_ms"`
	FinalizeMaxRetries      int `json:"finalize_max_retries" yaml:"finalize_max_retries"`
	// Rejected sentence utterances are resubmitted; rejected words are not.
	SpeakRetryIntervalMs int  `json:"speak_retry_interval_ms" yaml:"speak_retry_interval_ms"`
	SpeakMaxRetries      int  `json:"speak_max_retries" yaml:"speak_max_retries"`
	EnhanceTimeoutMs     int  `json:"enhance_timeout_ms" yaml:"enhance_timeout_ms"`
	SpeakWords           bool `json:"speak_words" yaml:"speak_words"`
}

func DefaultConfig() SentenceConfig {
	return SentenceConfig{
		NoGestureLabel:          DefaultNoGestureLabel,
		InactivityTimeoutMs:     3000,
		FinalizeRetryIntervalMs: 500,
		FinalizeMaxRetries:      20,
		SpeakRetryIntervalMs:    300,
		SpeakMaxRetries:         40,
		EnhanceTimeoutMs:        10000,
		SpeakWords:              true,
	}
}

func ms(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

func (c SentenceConfig) inactivity() time.Duration { return ms(c.InactivityTimeoutMs, 3000) }
func (c SentenceConfig) finalizeRetry() time.Duration {
	return ms(c.FinalizeRetryIntervalMs, 500)
}
func (c SentenceConfig) speakRetry() time.Duration { return ms(c.SpeakRetryIntervalMs, 300) }
func (c SentenceConfig) enhanceTimeout() time.Duration {
	return ms(c.EnhanceTimeoutMs, 10000)
}

func (c SentenceConfig) noGesture() string {
	if c.NoGestureLabel == "" {
		return DefaultNoGestureLabel
	}
	return c.NoGestureLabel
}
