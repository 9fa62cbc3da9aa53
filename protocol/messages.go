// Package protocol defines the messages exchanged between a handspeak agent
// and a fleet control plane over a single WebSocket.
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType enumerates all control-plane message types.
type MessageType string

const (
	// Agent -> control plane
	MsgRegister  MessageType = "register"
	MsgHeartbeat MessageType = "heartbeat"
	MsgLog       MessageType = "log"
	MsgLogEnd    MessageType = "log_end"
	MsgEvent     MessageType = "event"
	MsgSentence  MessageType = "sentence"

	// Control plane -> agent
	MsgConfigUpdate  MessageType = "config_update"
	MsgResetSessions MessageType = "reset_sessions"
	MsgShutdown      MessageType = "shutdown"

	// Either direction
	MsgAck MessageType = "ack"
)

var inbound = map[MessageType]bool{
	MsgConfigUpdate:  true,
	MsgResetSessions: true,
	MsgShutdown:      true,
	MsgAck:           true,
}

// Inbound reports whether an agent accepts messages of type t.
func (t MessageType) Inbound() bool { return inbound[t] }

// Capabilities advertised at registration.
const (
	CapabilityGestureSpeech = "gesture-speech"
	CapabilityRecorder      = "recorder"
	CapabilityToneSelect    = "tone-select"
)

// AgentStatus is the coarse state reported in heartbeats.
type AgentStatus string

const (
	StatusIdle     AgentStatus = "idle"     // no device connected
	StatusRunning  AgentStatus = "running"  // at least one device session
	StatusSpeaking AgentStatus = "speaking" // the shared speaker is busy
)

// RegisterPayload is sent once by the agent immediately after connecting.
type RegisterPayload struct {
	AgentID      string            `json:"agent_id"`
	Version      string            `json:"version,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Tones        []string          `json:"tones,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// HeartbeatPayload carries liveness plus the device sessions currently served.
type HeartbeatPayload struct {
	AgentID   string        `json:"agent_id"`
	Timestamp time.Time     `json:"timestamp"`
	Status    AgentStatus   `json:"status"`
	Sessions  []SessionInfo `json:"sessions"`
}

// SessionInfo describes one connected device.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id"`
	StartedAt time.Time `json:"started_at"`
}

// LogPayload carries a batch of log lines from one session, oldest first.
type LogPayload struct {
	AgentID   string     `json:"agent_id"`
	SessionID string     `json:"session_id"`
	Entries   []LogEntry `json:"entries"`
}

type LogEntry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogEndPayload signals that a session's log stream has ended.
type LogEndPayload struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Lines     int    `json:"lines"`
}

// EventPayload relays a UI event of a session; Data is the {"id","payload"} envelope.
type EventPayload struct {
	AgentID   string          `json:"agent_id"`
	SessionID string          `json:"session_id"`
	EventID   string          `json:"event_id"`
	Data      json.RawMessage `json:"data"`
}

// SentencePayload reports a finalized sentence so the fleet can keep
// transcripts without subscribing to every UI event.
type SentencePayload struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	Original  string    `json:"original"`
	Corrected string    `json:"corrected"`
	Enhanced  string    `json:"enhanced"`
	Tone      string    `json:"tone"`
	Fallback  bool      `json:"fallback,omitempty"`
	At        time.Time `json:"at"`
}

// ConfigUpdatePayload pushes new configuration to the agent. Tone takes
// effect immediately; Settings and Keys apply to sessions started afterwards.
type ConfigUpdatePayload struct {
	Tone     string            `json:"tone,omitempty"`
	Settings json.RawMessage   `json:"settings,omitempty"`
	Keys     map[string]string `json:"keys,omitempty"`
}

// ResetSessionsPayload drops pending words and buffered frames of every
// running session without disconnecting devices.
type ResetSessionsPayload struct {
	Reason string `json:"reason,omitempty"`
}

type ShutdownPayload struct {
	Reason string `json:"reason,omitempty"`
}

// AckPayload answers a control-plane message by sequence number.
type AckPayload struct {
	Seq   uint64      `json:"seq"`
	Type  MessageType `json:"type"`
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
}
