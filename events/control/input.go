package control

import "handspeak/core"

// ToneSelectEvent changes the tone used for subsequent sentences.
type ToneSelectEvent struct {
	core.ExternalInputMarker
	Tone string `json:"tone"`
}

func (e *ToneSelectEvent) GetId() string {
	return "tone.select"
}

// RecorderStartEvent starts writing labelled training rows.
type RecorderStartEvent struct {
	core.ExternalInputMarker
	Label string `json:"label"`
	ID    string `json:"id"`
}

func (e *RecorderStartEvent) GetId() string {
	return "recorder.start"
}

// RecorderStopEvent stops the training recorder.
type RecorderStopEvent struct {
	core.ExternalInputMarker
}

func (e *RecorderStopEvent) GetId() string {
	return "recorder.stop"
}

// RecorderDeleteEvent removes recorded rows whose ID or label equals Value.
type RecorderDeleteEvent struct {
	core.ExternalInputMarker
	Type  string `json:"type"` // "id" or "label"
	Value string `json:"value"`
}

func (e *RecorderDeleteEvent) GetId() string {
	return "recorder.delete"
}

// SessionResetEvent discards pending words and in-flight work.
type SessionResetEvent struct {
	core.ExternalInputMarker
}

func (e *SessionResetEvent) GetId() string {
	return "session.reset"
}

// Register wires every input event into the UI bridge.
func Register(e *core.ExternalEventHandler) {
	e.RegisterStickyInputEvent("tone.select", func() core.IExternalInputEvent { return &ToneSelectEvent{} })
	e.RegisterInputEvent("recorder.start", func() core.IExternalInputEvent { return &RecorderStartEvent{} })
	e.RegisterInputEvent("recorder.stop", func() core.IExternalInputEvent { return &RecorderStopEvent{} })
	e.RegisterInputEvent("recorder.delete", func() core.IExternalInputEvent { return &RecorderDeleteEvent{} })
	e.RegisterInputEvent("session.reset", func() core.IExternalInputEvent { return &SessionResetEvent{} })
}
