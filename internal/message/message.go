// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package message defines the wire envelope exchanged between the
// orchestrator and plugins, plus the channel naming conventions of the
// pub/sub transport.
package message

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// Type identifies the kind of message.
type Type string

// Message types understood by the bus and every plugin.
const (
	TypeRequest     Type = "REQUEST"
	TypeResponse    Type = "RESPONSE"
	TypeEvent       Type = "EVENT"
	TypeHealthCheck Type = "HEALTH_CHECK"
	TypeDiscovery   Type = "DISCOVERY"
	TypeError       Type = "ERROR"
)

// Valid reports whether t is a known message type.
func (t Type) Valid() bool {
	switch t {
	case TypeRequest, TypeResponse, TypeEvent, TypeHealthCheck, TypeDiscovery, TypeError:
		return true
	default:
		return false
	}
}

// Message is the unit of communication. Target is empty for broadcasts.
// CorrelationID is set on responses and equals the originating request's ID.
type Message struct {
	ID             string         `json:"id"`
	Type           Type           `json:"type"`
	Source         string         `json:"source"`
	Target         string         `json:"target,omitempty"`
	Payload        map[string]any `json:"payload"`
	CorrelationID  string         `json:"correlationId,omitempty"`
	Timestamp      string         `json:"timestamp"`
	TimeoutSeconds float64        `json:"timeoutSeconds,omitempty"`
}

// New creates a message with a fresh ID and current timestamp.
func New(t Type, source string, payload map[string]any) *Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Message{
		ID:        NewID(),
		Type:      t,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// NewRequest creates a REQUEST addressed to a plugin. The action is carried
// in the payload under the "action" key alongside the caller's data.
func NewRequest(source, target, action string, data map[string]any) *Message {
	payload := map[string]any{"action": action}
	for k, v := range data {
		payload[k] = v
	}
	m := New(TypeRequest, source, payload)
	m.Target = target
	return m
}

// Response builds a RESPONSE correlated to m.
func (m *Message) Response(source string, payload map[string]any) *Message {
	r := New(TypeResponse, source, payload)
	r.Target = m.Source
	r.CorrelationID = m.ID
	return r
}

// Action returns the payload's "action" field, or "" when absent.
func (m *Message) Action() string {
	a, _ := m.Payload["action"].(string)
	return a
}

// Encode serializes the message for the transport.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, oops.Code("MESSAGE_ENCODE_FAILED").Wrapf(err, "encode message %s", m.ID)
	}
	return data, nil
}

// Decode parses a wire payload into a Message. Unknown message types are
// rejected so the listener can drop them without guessing.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("MESSAGE_DECODE_FAILED").Wrapf(err, "decode message")
	}
	if !m.Type.Valid() {
		return nil, oops.Code("MESSAGE_BAD_TYPE").Errorf("unknown message type %q", m.Type)
	}
	return &m, nil
}
