package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"opencode-nexus/internal/chat"
)

// SQLiteHistory implements History using SQLite.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory opens (or creates) a SQLite database at the given path.
func NewSQLiteHistory(dbPath string) (*SQLiteHistory, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "create history directory")
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "open history database")
	}

	h := &SQLiteHistory{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return h, nil
}

func (h *SQLiteHistory) migrate() error {
	for _, stmt := range migrations {
		if _, err := h.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "apply migration")
		}
	}
	return nil
}

// SaveSession upserts the session row and all of its messages.
func (h *SQLiteHistory) SaveSession(ctx context.Context, sess chat.Session) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin save session")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, title, created_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Title, sess.CreatedAt,
	); err != nil {
		return errors.Wrapf(err, "save session %s", sess.ID)
	}

	for _, msg := range sess.Messages {
		if err := saveMessageTx(ctx, tx, sess.ID, msg); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(), "commit save session")
}

// SaveMessage upserts a single message; streamed messages are written once,
// with their final authoritative content.
func (h *SQLiteHistory) SaveMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Content, msg.Timestamp,
	)
	return errors.Wrapf(err, "save message %s", msg.ID)
}

func saveMessageTx(ctx context.Context, tx *sql.Tx, sessionID string, msg chat.Message) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Content, msg.Timestamp,
	)
	return errors.Wrapf(err, "save message %s", msg.ID)
}

// ListSessions returns all sessions in creation order, without messages.
func (h *SQLiteHistory) ListSessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM sessions ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer rows.Close()

	var sessions []chat.Session
	for rows.Next() {
		var sess chat.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, errors.Wrap(rows.Err(), "list sessions")
}

// LoadSession returns a session with its full transcript in arrival order.
func (h *SQLiteHistory) LoadSession(ctx context.Context, sessionID string) (chat.Session, error) {
	var sess chat.Session
	err := h.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&sess.ID, &sess.Title, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return chat.Session{}, errors.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return chat.Session{}, errors.Wrapf(err, "load session %s", sessionID)
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return chat.Session{}, errors.Wrapf(err, "load messages for %s", sessionID)
	}
	defer rows.Close()

	for rows.Next() {
		var msg chat.Message
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.Timestamp); err != nil {
			return chat.Session{}, errors.Wrap(err, "scan message")
		}
		msg.Role = chat.Role(role)
		sess.Messages = append(sess.Messages, msg)
	}
	return sess, errors.Wrap(rows.Err(), "load messages")
}

// DeleteSession removes a session and its messages.
func (h *SQLiteHistory) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return errors.Wrapf(err, "delete messages for %s", sessionID)
	}
	_, err := h.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return errors.Wrapf(err, "delete session %s", sessionID)
}

// Close closes the underlying database.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}
