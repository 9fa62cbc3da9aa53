package sentence

import (
	"handspeak/core"
	"handspeak/history"
)

type State string

const (
	StateIdle       State = "idle"
	StateBuilding   State = "building"
	StateFinalizing State = "finalizing"
)

// WordAddedEvent fires for every real word appended to the pending sentence.
type WordAddedEvent struct {
	core.ExternalOutputMarker
	Word    string   `json:"word"`
	Pending []string `json:"pending"`
}

func (e *WordAddedEvent) GetId() string {
	return "sentence.word_added"
}

// SentenceStateEvent reports every state transition.
type SentenceStateEvent struct {
	core.ExternalOutputMarker
	State      State  `json:"state"`
	Generation uint64 `json:"generation"`
}

func (e *SentenceStateEvent) GetId() string {
	return "sentence.state"
}

// SentenceFinalizedEvent carries the enhanced sentence, or the raw sentence
// when enhancement failed.
type SentenceFinalizedEvent struct {
	core.ExternalOutputMarker
	Enhancement core.Enhancement `json:"enhancement"`
	Generation  uint64           `json:"generation"`
}

func (e *SentenceFinalizedEvent) GetId() string {
	return "sentence.finalized"
}

// HistoryUpdatedEvent is a full snapshot, most recent first.
type HistoryUpdatedEvent struct {
	core.ExternalOutputMarker
	Entries []history.Entry `json:"entries"`
}

func (e *HistoryUpdatedEvent) GetId() string {
	return "sentence.history"
}
