package control

import "handspeak/core"

// RecorderStatusEvent reports recorder state and how many rows the file holds.
type RecorderStatusEvent struct {
	core.ExternalOutputMarker
	Recording bool   `json:"recording"`
	Label     string `json:"label,omitempty"`
	Rows      int    `json:"rows"`
	Deleted   int    `json:"deleted,omitempty"`
	Path      string `json:"path"`
	Error     string `json:"error,omitempty"`
}

func (e *RecorderStatusEvent) GetId() string {
	return "recorder.status"
}

// ToneChangedEvent confirms the tone now in effect.
type ToneChangedEvent struct {
	core.ExternalOutputMarker
	Tone core.Tone `json:"tone"`
}

func (e *ToneChangedEvent) GetId() string {
	return "tone.changed"
}
