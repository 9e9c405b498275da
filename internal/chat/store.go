package chat

import (
	"fmt"
	"sync"

	"opencode-nexus/internal/apperr"
)

// Store owns the session state and folds the transport event feed into it.
// The streaming cursor lives here as an explicit field: it identifies the
// assistant message currently accumulating chunks and is reset on session
// switch and on every terminal notification, so chunk delivery can never
// leak across exchanges or sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string // session ids in creation order

	currentID string
	// streamingID is "" whenever no stream is open for the current session.
	streamingID string

	errs *apperr.Emitter
}

// NewStore creates an empty store. Terminal stream errors are classified and
// broadcast through errs.
func NewStore(errs *apperr.Emitter) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		errs:     errs,
	}
}

// AddSession registers a session with the store. The store takes ownership
// of the value.
func (s *Store) AddSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.order = append(s.order, sess.ID)
	}
	s.sessions[sess.ID] = sess
}

// Switch makes the given session current. The streaming cursor is cleared
// unconditionally before switching, even mid-stream: abandoning an in-flight
// stream is the cancellation mechanism for session changes.
func (s *Store) Switch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.streamingID = ""
	s.currentID = sessionID
	return nil
}

// Delete removes a session. Deleting the current session also clears the
// cursor and leaves no session selected.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.currentID == sessionID {
		s.currentID = ""
		s.streamingID = ""
	}
	return nil
}

// CurrentID returns the id of the current session, or "" if none.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// StreamingID returns the id of the message currently accumulating chunks,
// or "" if the streaming window is closed.
func (s *Store) StreamingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingID
}

// Snapshot returns a copy of a session's state.
func (s *Store) Snapshot(sessionID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return copySession(sess), true
}

// Current returns a copy of the current session's state.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[s.currentID]
	if !ok {
		return Session{}, false
	}
	return copySession(sess), true
}

// List returns copies of all sessions in creation order.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copySession(s.sessions[id]))
	}
	return out
}

// AppendUser appends a user message to a session and returns it.
func (s *Store) AppendUser(sessionID, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Message{}, fmt.Errorf("session %s not found", sessionID)
	}
	msg := NewMessage(RoleUser, content)
	sess.Messages = append(sess.Messages, msg)
	return msg, nil
}

// Apply folds one transport event into the store.
func (s *Store) Apply(ev Event) {
	switch ev.Type {
	case EventSessionCreated:
		if ev.Session != nil {
			s.AddSession(ev.Session)
		}
	case EventMessageChunk:
		s.ApplyChunk(ev.SessionID, ev.Chunk)
	case EventMessageReceived:
		if ev.Message != nil {
			s.ApplyMessage(ev.SessionID, *ev.Message)
		}
	case EventError:
		s.ApplyError(ev.ErrMsg)
	}
}

// ApplyChunk folds one partial-content notification into the current
// session. A chunk either opens a new assistant message (when no stream is
// in progress, or the last message is not the streaming message) or grows
// the one identified by the cursor. Chunks addressed to a session other than
// the current one are orphans of an abandoned stream and are dropped.
func (s *Store) ApplyChunk(sessionID, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sessionID != s.currentID {
		return
	}

	last := lastMessage(sess)
	if s.streamingID == "" || last == nil || last.Role != RoleAssistant || last.ID != s.streamingID {
		msg := NewMessage(RoleAssistant, chunk)
		sess.Messages = append(sess.Messages, msg)
		s.streamingID = msg.ID
		return
	}
	last.Content += chunk
}

// ApplyMessage folds the terminal, authoritative message for an exchange.
// The server's version wins over accumulated chunk content, and the
// streaming window closes.
func (s *Store) ApplyMessage(sessionID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}

	if sessionID == s.currentID {
		if last := lastMessage(sess); s.streamingID != "" && last != nil && last.ID == s.streamingID {
			last.Content = msg.Content
			last.Timestamp = msg.Timestamp
		} else {
			sess.Messages = append(sess.Messages, msg)
		}
		s.streamingID = ""
		return
	}
	// Completion for a background session: record it without touching the
	// current session's cursor.
	sess.Messages = append(sess.Messages, msg)
}

// ApplyError treats a stream error as terminal: the cursor is cleared so the
// next chunk starts a fresh message, but any partially streamed content is
// kept visible for its diagnostic value. The error is classified and
// broadcast.
func (s *Store) ApplyError(message string) {
	s.mu.Lock()
	s.streamingID = ""
	s.mu.Unlock()

	if s.errs != nil {
		s.errs.Handle(message, "message stream")
	}
}

func lastMessage(sess *Session) *Message {
	if len(sess.Messages) == 0 {
		return nil
	}
	return &sess.Messages[len(sess.Messages)-1]
}

func copySession(sess *Session) Session {
	out := *sess
	out.Messages = make([]Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return out
}
