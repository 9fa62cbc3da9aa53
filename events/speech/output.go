package speech

import "handspeak/core"

type RequestKind string

const (
	// KindWord is best-effort incremental speech of a single recognized word.
	KindWord RequestKind = "word"
	// KindSentence is the finalized, enhanced sentence.
	KindSentence RequestKind = "sentence"
)

// SpeakRequestEvent asks the speech handler to voice text.
type SpeakRequestEvent struct {
	RequestID string
	Text      string
	Tone      core.Tone
	Kind      RequestKind
	Attempt   int
}

func (e *SpeakRequestEvent) GetId() string {
	return "speech.request"
}

// SpeakRejectedEvent is broadcast when the arbiter refused a request because
// another utterance was active.
type SpeakRejectedEvent struct {
	Request SpeakRequestEvent
}

func (e *SpeakRejectedEvent) GetId() string {
	return "speech.rejected"
}

// SpeakingStartedEvent fires when an utterance acquires the arbiter.
type SpeakingStartedEvent struct {
	core.ExternalOutputMarker
	RequestID string      `json:"request_id"`
	Text      string      `json:"text"`
	Kind      RequestKind `json:"kind"`
}

func (e *SpeakingStartedEvent) GetId() string {
	return "speech.started"
}

// SpeakingEndedEvent fires when playback ends or errors on either engine.
type SpeakingEndedEvent struct {
	core.ExternalOutputMarker
	RequestID string      `json:"request_id"`
	Kind      RequestKind `json:"kind"`
	Engine    string      `json:"engine"`
	Fallback  bool        `json:"fallback"`
	Error     string      `json:"error,omitempty"`
}

func (e *SpeakingEndedEvent) GetId() string {
	return "speech.ended"
}
