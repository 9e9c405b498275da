package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"opencode-nexus/internal/chat"
)

func newTestHistory(t *testing.T) *SQLiteHistory {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	h, err := NewSQLiteHistory(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSaveAndLoadSession(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	sess := chat.NewSession("weather chat")
	sess.Messages = []chat.Message{
		chat.NewMessage(chat.RoleUser, "Hello"),
		chat.NewMessage(chat.RoleAssistant, "Hi there!"),
	}

	if err := h.SaveSession(ctx, *sess); err != nil {
		t.Fatal(err)
	}

	loaded, err := h.LoadSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Title != "weather chat" {
		t.Fatalf("expected title, got %q", loaded.Title)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[0].Content != "Hello" {
		t.Fatalf("expected 'Hello', got %q", loaded.Messages[0].Content)
	}
	if loaded.Messages[1].Role != chat.RoleAssistant {
		t.Fatalf("expected assistant role, got %s", loaded.Messages[1].Role)
	}
}

func TestSaveMessageUpsert(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	sess := chat.NewSession("")
	if err := h.SaveSession(ctx, *sess); err != nil {
		t.Fatal(err)
	}

	msg := chat.NewMessage(chat.RoleAssistant, "draft")
	if err := h.SaveMessage(ctx, sess.ID, msg); err != nil {
		t.Fatal(err)
	}
	msg.Content = "final"
	if err := h.SaveMessage(ctx, sess.ID, msg); err != nil {
		t.Fatal(err)
	}

	loaded, err := h.LoadSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Messages) != 1 {
		t.Fatalf("upsert should not duplicate, got %d messages", len(loaded.Messages))
	}
	if loaded.Messages[0].Content != "final" {
		t.Fatalf("expected final content, got %q", loaded.Messages[0].Content)
	}
}

func TestListSessionsInCreationOrder(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	first := chat.NewSession("first")
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := chat.NewSession("second")

	if err := h.SaveSession(ctx, *second); err != nil {
		t.Fatal(err)
	}
	if err := h.SaveSession(ctx, *first); err != nil {
		t.Fatal(err)
	}

	sessions, err := h.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Title != "first" || sessions[1].Title != "second" {
		t.Fatalf("wrong order: %q then %q", sessions[0].Title, sessions[1].Title)
	}
}

func TestDeleteSession(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	sess := chat.NewSession("doomed")
	sess.Messages = []chat.Message{chat.NewMessage(chat.RoleUser, "bye")}
	if err := h.SaveSession(ctx, *sess); err != nil {
		t.Fatal(err)
	}

	if err := h.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.LoadSession(ctx, sess.ID); err == nil {
		t.Fatal("expected not-found error after delete")
	}

	sessions, err := h.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
}

func TestIsolatedSessions(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	a := chat.NewSession("a")
	a.Messages = []chat.Message{chat.NewMessage(chat.RoleUser, "a msg")}
	b := chat.NewSession("b")
	b.Messages = []chat.Message{chat.NewMessage(chat.RoleUser, "b msg")}

	if err := h.SaveSession(ctx, *a); err != nil {
		t.Fatal(err)
	}
	if err := h.SaveSession(ctx, *b); err != nil {
		t.Fatal(err)
	}

	la, _ := h.LoadSession(ctx, a.ID)
	lb, _ := h.LoadSession(ctx, b.ID)

	if len(la.Messages) != 1 || la.Messages[0].Content != "a msg" {
		t.Fatal("session a history incorrect")
	}
	if len(lb.Messages) != 1 || lb.Messages[0].Content != "b msg" {
		t.Fatal("session b history incorrect")
	}
}
