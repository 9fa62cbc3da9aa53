package core

type CriticalErrorEvent struct {
	Error string
}

func (e *CriticalErrorEvent) GetId() string {
	return "shared.critical_error"
}

type WarningEvent struct {
	Error string
}

func (e *WarningEvent) GetId() string {
	return "shared.warning"
}

// EndSessionEvent is fired when the device session should terminate.
// The runner handles it by stopping the pipeline gracefully.
type EndSessionEvent struct {
	Reason string
}

func (e *EndSessionEvent) GetId() string {
	return "shared.end_session"
}

type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

// StatusEvent is a short user-facing message, e.g. a transient network failure.
type StatusEvent struct {
	ExternalOutputMarker
	Level   StatusLevel `json:"level"`
	Source  string      `json:"source"`
	Message string      `json:"message"`
}

func (e *StatusEvent) GetId() string {
	return "shared.status"
}
