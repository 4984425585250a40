// Package store persists chat messages in SQLite. It is the durable side of
// the chat room: every accepted chat message is appended here, and the most
// recent messages are replayed to newly joined clients.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/chatraum/internal/logger"
	"github.com/codefionn/chatraum/internal/protocol"
)

// MaxTextLen is the maximum stored message length in characters.
const MaxTextLen = 1000

// ErrTextTooLong is returned by Append when the message exceeds MaxTextLen.
var ErrTextTooLong = fmt.Errorf("message exceeds %d characters", MaxTextLen)

// Message is a persisted chat message.
type Message struct {
	ID        int64
	Username  string
	Text      string
	Timestamp time.Time
}

// Wire converts the stored message to its wire representation.
func (m Message) Wire() protocol.ChatMessage {
	return protocol.ChatMessage{
		Username:  m.Username,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}

// Store handles SQLite operations for chat messages
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens (creating if necessary) the message database at dbPath and
// ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps append ordering well defined.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger.Global().WithPrefix("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Append stores a chat message and returns the stored row, including the
// timestamp every client will see.
func (s *Store) Append(ctx context.Context, username, text string) (Message, error) {
	if len([]rune(text)) > MaxTextLen {
		return Message{}, ErrTextTooLong
	}

	msg := Message{
		Username:  username,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (username, message, timestamp) VALUES (?, ?, ?)",
		msg.Username, msg.Text, msg.Timestamp)
	if err != nil {
		s.log.Error("append failed for %s: %v", username, err)
		return Message{}, fmt.Errorf("failed to save message: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}
	return msg, nil
}

// Recent returns up to limit of the most recently stored messages, ordered
// oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, username, message, timestamp FROM messages ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		s.log.Error("recent query failed: %v", err)
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Username, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	// The query walks newest first; reverse for oldest-first replay.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Count returns the total number of stored messages.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}
