// Package history persists chat sessions so they survive restarts. Only
// settled state is written: the in-flight streaming message belongs to the
// chat store until its exchange completes.
package history

import (
	"context"

	"opencode-nexus/internal/chat"
)

// History is the interface for persistent session storage.
type History interface {
	SaveSession(ctx context.Context, sess chat.Session) error
	SaveMessage(ctx context.Context, sessionID string, msg chat.Message) error
	ListSessions(ctx context.Context) ([]chat.Session, error)
	LoadSession(ctx context.Context, sessionID string) (chat.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}
