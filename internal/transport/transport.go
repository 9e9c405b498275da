// Package transport is the boundary to the chat backend. A Client starts one
// exchange per SendMessage call and delivers the response as an ordered feed
// of chat events: zero or more message_chunk records followed by exactly one
// terminal record (message_received on success, error otherwise). The feed
// channel closes after the terminal record.
package transport

import (
	"context"

	"opencode-nexus/internal/chat"
)

// Client is the invocation boundary used by the session layer. The caller is
// agnostic to how the client reaches the server.
type Client interface {
	// Name returns the backend name (e.g. "openai", "anthropic").
	Name() string

	// SendMessage starts an exchange for the given session. history is the
	// full transcript including the just-appended user message. A non-nil
	// error means the exchange never started and may be retried; failures
	// after the stream opens arrive as error events on the feed.
	SendMessage(ctx context.Context, sessionID string, history []chat.Message) (<-chan chat.Event, error)
}
