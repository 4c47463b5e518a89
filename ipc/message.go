package ipc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const ProtocolVersion = 1

// Channel names shared by the coordinator and windows.
const (
	ChannelTokenChanged = "token-changed"
	ChannelToggleFormat = "toggle-format"
	ChannelOpenChat     = "open-chat"
	ChannelStoreChanged = "store-changed"
)

// Message is the envelope for every notification between processes.
type Message struct {
	V       int             `json:"v"`
	Channel string          `json:"channel"`
	ID      string          `json:"id"`
	TS      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage creates a Message with a generated ID and current timestamp.
func NewMessage(channel string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		V:       ProtocolVersion,
		Channel: channel,
		ID:      uuid.NewString(),
		TS:      time.Now().UnixMilli(),
		Payload: data,
	}, nil
}

// ParsePayload unmarshals the payload into the given target.
func (m *Message) ParsePayload(target any) error {
	return json.Unmarshal(m.Payload, target)
}

func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
