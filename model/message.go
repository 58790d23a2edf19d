// model/message.go
package model

import "encoding/json"

// MessageType discriminates frames on the event stream.
type MessageType string

const (
	MessageTypeNotification MessageType = "notification"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
)

// Message is the envelope every stream frame decodes into. Payload stays raw
// so unknown types can be passed through to other consumers untouched.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Notification decodes the payload as a NotificationEvent. Only valid when
// Type == MessageTypeNotification.
func (m Message) Notification() (NotificationEvent, error) {
	var event NotificationEvent
	err := json.Unmarshal(m.Payload, &event)
	return event, err
}

// NewNotificationMessage wraps an event into a stream envelope.
func NewNotificationMessage(event NotificationEvent, timestamp string) (Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageTypeNotification, Payload: payload, Timestamp: timestamp}, nil
}
