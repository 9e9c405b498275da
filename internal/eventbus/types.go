package eventbus

import "time"

// Topic represents an event topic.
type Topic string

const (
	TopicSessionCreated  Topic = "session_created"
	TopicSessionSwitched Topic = "session_switched"
	TopicMessageSent     Topic = "message_sent"
	TopicMessageReceived Topic = "message_received"
	TopicMessageChunk    Topic = "message_chunk"
	TopicError           Topic = "error"
	TopicStatusChange    Topic = "status_change"
)

// Event is a message passed through the event bus.
type Event struct {
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

// Handler processes an event.
type Handler func(Event)
