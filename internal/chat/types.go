// Package chat holds the session model and the store that reconciles an
// incrementally delivered response stream into exactly one assistant message
// per exchange.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's transcript. Content is mutable only
// while the message is the active streaming message; once the store's cursor
// moves on, it is frozen.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation. Messages are append-only in arrival order.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// NewSession creates a session with a client-generated id.
func NewSession(title string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// NewMessage creates a message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// EventType names the notifications delivered by the transport boundary.
type EventType string

const (
	EventSessionCreated  EventType = "session_created"
	EventMessageReceived EventType = "message_received"
	EventMessageChunk    EventType = "message_chunk"
	EventError           EventType = "error"
)

// Event is one record in the per-session, ordered transport feed.
type Event struct {
	Type      EventType `json:"type"`
	Session   *Session  `json:"session,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Chunk     string    `json:"chunk,omitempty"`
	ErrMsg    string    `json:"message_text,omitempty"`
}
