package amqp

import (
	"encoding/json"
	"time"
)

// SessionMessage announces a change of a user's session. It never carries
// the token.
type SessionMessage struct {
	Kind      string    `json:"kind"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RoutingKey is "session.<kind>", e.g. session.login.
func (m *SessionMessage) RoutingKey() string {
	return "session." + m.Kind
}

// ToJSON converts the message to JSON bytes
func (m *SessionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SessionMessageFromJSON parses a message produced by ToJSON.
func SessionMessageFromJSON(data []byte) (*SessionMessage, error) {
	var msg SessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
