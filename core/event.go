package core

type IEvent interface {
	GetId() string // Returns the unique identifier of the event.
}

// IExternalOutputEvent is implemented by events that are broadcast to
// ExternalEventHandler clients when they leave the pipeline.
type IExternalOutputEvent interface {
	IEvent
	ExternalOutput()
}

// IExternalInputEvent is implemented by events that originate outside the
// pipeline. When the ExternalEventHandler receives one, it is pushed to the
// pipeline top so all handlers can observe it.
type IExternalInputEvent interface {
	IEvent
	ExternalInput()
}

// ExternalOutputMarker is embedded by events that should reach UI clients.
type ExternalOutputMarker struct{}

func (ExternalOutputMarker) ExternalOutput() {}

// ExternalInputMarker is embedded by events decoded from UI clients.
type ExternalInputMarker struct{}

func (ExternalInputMarker) ExternalInput() {}
