package transport

import (
	"context"
	"log/slog"

	"opencode-nexus/internal/apperr"
	"opencode-nexus/internal/chat"
)

// Fallback tries clients in order, advancing on retryable failures. The
// retryability verdict comes from the apperr classifier, never from local
// string matching.
type Fallback struct {
	clients []Client
}

// NewFallback creates a client chain. The first client is primary.
func NewFallback(clients ...Client) *Fallback {
	return &Fallback{clients: clients}
}

func (f *Fallback) Name() string {
	if len(f.clients) > 0 {
		return f.clients[0].Name() + "+fallback"
	}
	return "fallback"
}

func (f *Fallback) SendMessage(ctx context.Context, sessionID string, history []chat.Message) (<-chan chat.Event, error) {
	var lastErr error
	for _, c := range f.clients {
		ch, err := c.SendMessage(ctx, sessionID, history)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if !apperr.IsRetryable(err) {
			return nil, err
		}
		slog.Warn("client failed, trying next", "client", c.Name(), "error", err)
	}
	return nil, lastErr
}
