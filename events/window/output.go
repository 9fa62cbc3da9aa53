package window

import "handspeak/core"

// WindowReadyEvent hands a completed window to the classifier.
type WindowReadyEvent struct {
	Window *core.Window
}

func (e *WindowReadyEvent) GetId() string {
	return "window.ready"
}

// BufferProgressEvent lets the UI draw a fill indicator.
type BufferProgressEvent struct {
	core.ExternalOutputMarker
	Length     int  `json:"length"`
	Target     int  `json:"target"`
	CoolingOff bool `json:"cooling_off"`
}

func (e *BufferProgressEvent) GetId() string {
	return "window.progress"
}
