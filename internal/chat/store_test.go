package chat

import (
	"testing"

	"opencode-nexus/internal/apperr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(apperr.NewEmitter())
}

func startSession(t *testing.T, s *Store, title string) *Session {
	t.Helper()
	sess := NewSession(title)
	s.AddSession(sess)
	if err := s.Switch(sess.ID); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestChunksCoalesceIntoOneMessage(t *testing.T) {
	s := newTestStore(t)
	sess := startSession(t, s, "test")

	if _, err := s.AppendUser(sess.ID, "hello"); err != nil {
		t.Fatal(err)
	}

	s.ApplyChunk(sess.ID, "a")
	firstID := s.StreamingID()
	if firstID == "" {
		t.Fatal("first chunk should open the streaming window")
	}
	s.ApplyChunk(sess.ID, "b")
	s.ApplyChunk(sess.ID, "c")
	if s.StreamingID() != firstID {
		t.Fatal("message id must be stable across chunks")
	}

	s.ApplyMessage(sess.ID, NewMessage(RoleAssistant, "abc final"))

	snap, _ := s.Current()
	if len(snap.Messages) != 2 {
		t.Fatalf("expected 2 messages (1 user + 1 assistant), got %d", len(snap.Messages))
	}
	asst := snap.Messages[1]
	if asst.ID != firstID {
		t.Fatal("completion must confirm the streamed message, not add another")
	}
	if asst.Content != "abc final" {
		t.Fatalf("authoritative content must win, got %q", asst.Content)
	}
	if s.StreamingID() != "" {
		t.Fatal("completion must close the streaming window")
	}
}

func TestChunkAccumulation(t *testing.T) {
	s := newTestStore(t)
	sess := startSession(t, s, "")

	s.ApplyChunk(sess.ID, "hel")
	s.ApplyChunk(sess.ID, "lo")

	snap, _ := s.Current()
	if len(snap.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(snap.Messages))
	}
	if snap.Messages[0].Content != "hello" {
		t.Fatalf("chunks must append in arrival order, got %q", snap.Messages[0].Content)
	}
}

func TestSequentialExchangesGetDistinctMessages(t *testing.T) {
	s := newTestStore(t)
	sess := startSession(t, s, "")

	s.AppendUser(sess.ID, "first question")
	s.ApplyChunk(sess.ID, "answer one")
	id1 := s.StreamingID()
	s.ApplyMessage(sess.ID, NewMessage(RoleAssistant, "answer one"))

	s.AppendUser(sess.ID, "second question")
	s.ApplyChunk(sess.ID, "answer two")
	id2 := s.StreamingID()
	s.ApplyMessage(sess.ID, NewMessage(RoleAssistant, "answer two"))

	if id1 == id2 {
		t.Fatal("second exchange must never reuse the first exchange's message")
	}
	snap, _ := s.Current()
	if len(snap.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(snap.Messages))
	}
	if snap.Messages[1].Content != "answer one" {
		t.Fatalf("first answer corrupted: %q", snap.Messages[1].Content)
	}
}

// A second user message arriving after the cursor cleared must start a new
// streaming message even though the old assistant message is still frozen in
// the transcript.
func TestChunkAfterUserMessageStartsNewMessage(t *testing.T) {
	s := newTestStore(t)
	sess := startSession(t, s, "")

	s.ApplyChunk(sess.ID, "partial")
	old := s.StreamingID()
	s.ApplyMessage(sess.ID, NewMessage(RoleAssistant, "done"))
	s.AppendUser(sess.ID, "follow-up")

	s.ApplyChunk(sess.ID, "new answer")
	if s.StreamingID() == old {
		t.Fatal("new exchange must not append to the frozen message")
	}

	snap, _ := s.Current()
	if len(snap.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(snap.Messages))
	}
	if snap.Messages[0].Content != "done" {
		t.Fatal("frozen message must not be mutated by later chunks")
	}
}

func TestSessionSwitchClearsCursorMidStream(t *testing.T) {
	s := newTestStore(t)
	first := startSession(t, s, "first")

	s.ApplyChunk(first.ID, "in flight")
	if s.StreamingID() == "" {
		t.Fatal("stream should be open")
	}

	second := NewSession("second")
	s.AddSession(second)
	if err := s.Switch(second.ID); err != nil {
		t.Fatal(err)
	}
	if s.StreamingID() != "" {
		t.Fatal("switching sessions must clear the streaming cursor")
	}

	// An orphaned chunk for the abandoned stream must be dropped.
	s.ApplyChunk(first.ID, " more")
	snap, _ := s.Snapshot(first.ID)
	if snap.Messages[0].Content != "in flight" {
		t.Fatalf("orphaned chunk mutated abandoned session: %q", snap.Messages[0].Content)
	}

	// The next chunk in the new session starts a fresh message.
	s.ApplyChunk(second.ID, "new stream")
	cur, _ := s.Current()
	if len(cur.Messages) != 1 || cur.Messages[0].Content != "new stream" {
		t.Fatalf("new session should start its own message, got %+v", cur.Messages)
	}
}

func TestErrorClearsCursorKeepsPartialContent(t *testing.T) {
	errs := apperr.NewEmitter()
	var received []apperr.ClassifiedError
	errs.Subscribe(func(ce apperr.ClassifiedError) { received = append(received, ce) })

	s := NewStore(errs)
	sess := startSession(t, s, "")

	s.ApplyChunk(sess.ID, "partial output")
	s.ApplyError("503 service unavailable")

	if s.StreamingID() != "" {
		t.Fatal("stream error must close the streaming window")
	}
	snap, _ := s.Current()
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "partial output" {
		t.Fatal("partially streamed content must stay visible")
	}
	if len(received) != 1 || received[0].Kind != apperr.KindServerUnavailable {
		t.Fatalf("stream error must be classified and broadcast, got %+v", received)
	}

	// The next chunk starts a new message rather than resuming the old one.
	s.ApplyChunk(sess.ID, "retry output")
	snap, _ = s.Current()
	if len(snap.Messages) != 2 {
		t.Fatalf("expected a fresh message after an error, got %d messages", len(snap.Messages))
	}
}

func TestMessageReceivedWithoutChunks(t *testing.T) {
	s := newTestStore(t)
	sess := startSession(t, s, "")

	msg := NewMessage(RoleAssistant, "complete answer")
	s.ApplyMessage(sess.ID, msg)

	snap, _ := s.Current()
	if len(snap.Messages) != 1 || snap.Messages[0].ID != msg.ID {
		t.Fatalf("un-streamed completion should append as-is, got %+v", snap.Messages)
	}
	if s.StreamingID() != "" {
		t.Fatal("cursor must stay closed")
	}
}

func TestApplyDispatch(t *testing.T) {
	s := newTestStore(t)

	sess := NewSession("via event")
	s.Apply(Event{Type: EventSessionCreated, Session: sess})
	if err := s.Switch(sess.ID); err != nil {
		t.Fatal(err)
	}

	s.Apply(Event{Type: EventMessageChunk, SessionID: sess.ID, Chunk: "hi"})
	final := NewMessage(RoleAssistant, "hi there")
	s.Apply(Event{Type: EventMessageReceived, SessionID: sess.ID, Message: &final})

	snap, _ := s.Current()
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "hi there" {
		t.Fatalf("event dispatch mismatch: %+v", snap.Messages)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	sess := startSession(t, s, "doomed")

	if err := s.Delete(sess.ID); err != nil {
		t.Fatal(err)
	}
	if s.CurrentID() != "" {
		t.Fatal("deleting the current session should clear selection")
	}
	if err := s.Delete(sess.ID); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestListOrder(t *testing.T) {
	s := newTestStore(t)
	a := NewSession("a")
	b := NewSession("b")
	s.AddSession(a)
	s.AddSession(b)

	list := s.List()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("sessions must list in creation order, got %+v", list)
	}
}
