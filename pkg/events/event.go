package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the discriminant for this event (e.g., "ai_agent_update").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the in-process event shape used for locally produced events
// (e.g. pipeline snapshots relayed to NATS).
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingType    = errors.New("frame has no type")
)

// Message is a discriminated inbound record `{type, ...payload}`.
// Raw keeps the full frame so handlers can decode into typed payloads.
type Message struct {
	Type       string
	Raw        json.RawMessage
	ReceivedAt time.Time
}

// ParseMessage decodes a raw frame. The frame must be a JSON object with a
// non-empty string "type" field.
func ParseMessage(raw []byte) (Message, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if head.Type == nil || *head.Type == "" {
		return Message{}, ErrMissingType
	}

	buf := make([]byte, len(raw))
	copy(buf, raw)

	return Message{
		Type:       *head.Type,
		Raw:        buf,
		ReceivedAt: time.Now(),
	}, nil
}

// Decode unmarshals the full frame into v.
func (m Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

func (m Message) EventType() string {
	return m.Type
}

func (m Message) Payload() map[string]interface{} {
	payload := make(map[string]interface{})
	_ = json.Unmarshal(m.Raw, &payload)
	delete(payload, "type")
	return payload
}

func (m Message) Timestamp() time.Time {
	return m.ReceivedAt
}

// Command is the outbound envelope `{action, data}`.
type Command struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// Encode serializes the command for the wire. Nil data is sent as an empty object.
func (c Command) Encode() ([]byte, error) {
	if c.Data == nil {
		c.Data = map[string]interface{}{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command %s: %w", c.Action, err)
	}
	return data, nil
}
