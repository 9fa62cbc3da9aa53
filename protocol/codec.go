package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

var ErrUnknownType = errors.New("protocol: unknown message type")

// Envelope wraps every message. Seq is assigned by the sender and echoed in
// acks; zero means the sender does not expect one.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode renders one message.
func Encode(msgType MessageType, seq uint64, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, Seq: seq}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", msgType, err)
		}
		env.Payload = raw
	}
	return sonic.Marshal(env)
}

// Decode parses an envelope of any direction.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if env.Type == "" {
		return env, errors.New("protocol: envelope missing type")
	}
	return env, nil
}

// DecodeInbound parses a message received by the agent. Types the agent does
// not accept yield ErrUnknownType together with the parsed envelope.
func DecodeInbound(data []byte) (Envelope, error) {
	env, err := Decode(data)
	if err != nil {
		return env, err
	}
	if !env.Type.Inbound() {
		return env, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
	return env, nil
}

// DecodePayload decodes the payload of env into T. An absent payload yields
// the zero value.
func DecodePayload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, nil
	}
	if err := sonic.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("protocol: decode %s payload: %w", env.Type, err)
	}
	return v, nil
}
