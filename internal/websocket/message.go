// internal/websocket/message.go
package websocket

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventConnected    EventType = "connected"
	EventNotification EventType = "notification"
	EventUnreadCount  EventType = "unread_count"
	EventPing         EventType = "ping"
	EventPong         EventType = "pong"
	EventError        EventType = "error"
)

type Message struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessage(eventType EventType, data interface{}) *Message {
	return &Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationData is the wire form of a billing notification pushed to the
// tenant's connected clients.
type NotificationData struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
