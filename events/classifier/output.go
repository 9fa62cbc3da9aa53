package classifier

import "handspeak/core"

// GestureLabelEvent is a successful prediction.
type GestureLabelEvent struct {
	core.ExternalOutputMarker
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	WindowSeq  uint64  `json:"window_seq"`
}

func (e *GestureLabelEvent) GetId() string {
	return "classifier.label"
}

// ClassificationFailedEvent is not a label and does not touch sentence state.
type ClassificationFailedEvent struct {
	WindowSeq uint64
	Error     string
}

func (e *ClassificationFailedEvent) GetId() string {
	return "classifier.failed"
}
