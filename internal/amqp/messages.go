package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"dindion/internal/realtime"
)

// ChangeMessage announces a committed write to the realtime tree. It carries
// only the node address; consumers load the node themselves.
type ChangeMessage struct {
	Path      string      `json:"path"`
	NodeID    string      `json:"node_id"`
	Op        realtime.Op `json:"op"`
	Timestamp time.Time   `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid change message")

// NewChangeMessage stamps a change with the current time.
func NewChangeMessage(c realtime.Change) *ChangeMessage {
	return &ChangeMessage{
		Path:      c.Path,
		NodeID:    c.ID,
		Op:        c.Op,
		Timestamp: time.Now(),
	}
}

// Change returns the tree change the message describes.
func (m *ChangeMessage) Change() realtime.Change {
	return realtime.Change{Path: m.Path, ID: m.NodeID, Op: m.Op}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON parses and validates a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Path == "" || msg.NodeID == "" || (msg.Op != realtime.OpAppend && msg.Op != realtime.OpDelete) {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
