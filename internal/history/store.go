// Package history provides PostgreSQL-backed storage for chat messages. It
// serves the REST history endpoints: clients fetch ordered message records
// newest first and reverse them locally before merging into the visible list.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultLimit is the page size used when a caller passes limit <= 0.
const DefaultLimit = 50

// Message is one persisted chat message. Room and RecipientID are mutually
// exclusive: room broadcasts carry an empty RecipientID, private messages
// carry both the pairwise room name and the recipient.
type Message struct {
	ID          string
	Room        string
	SenderID    string
	RecipientID string // empty for room broadcasts
	Body        string
	SentAt      time.Time
}

// Store manages chat messages in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new history store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts a message. The body is validated before insertion so malformed
// content never reaches the table.
func (s *Store) Save(ctx context.Context, msg *Message) error {
	if err := ValidateBody(msg.Body); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	var recipient sql.NullString
	if msg.RecipientID != "" {
		recipient = sql.NullString{String: msg.RecipientID, Valid: true}
	}

	const query = `
		INSERT INTO messages (id, room, sender_id, recipient_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.Room,
		msg.SenderID,
		recipient,
		msg.Body,
		msg.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// ListRoom returns up to limit messages for a room, newest first. Pairwise
// private rooms are queried the same way using their deterministic name.
func (s *Store) ListRoom(ctx context.Context, room string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	const query = `
		SELECT id, room, sender_id, recipient_id, body, sent_at
		FROM messages
		WHERE room = $1
		ORDER BY sent_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list room: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListSince returns messages for a room sent after the given time, oldest
// first. Used to backfill gaps after a long disconnect.
func (s *Store) ListSince(ctx context.Context, room string, since time.Time) ([]Message, error) {
	const query = `
		SELECT id, room, sender_id, recipient_id, body, sent_at
		FROM messages
		WHERE room = $1 AND sent_at > $2
		ORDER BY sent_at ASC`

	rows, err := s.db.QueryContext(ctx, query, room, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("history: list since: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var (
			msg       Message
			recipient sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.SenderID, &recipient, &msg.Body, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if recipient.Valid {
			msg.RecipientID = recipient.String
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}
