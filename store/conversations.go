package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ConversationType distinguishes one-to-one chats from groups.
type ConversationType string

const (
	Private    ConversationType = "private"
	Group      ConversationType = "group"
	NoteToSelf ConversationType = "note_to_self"
)

// Conversation is a chat with a contact or a group.
type Conversation struct {
	ID            string
	Type          ConversationType
	Name          string
	RecipientID   string
	GroupID       string
	LastMessageAt int64
	Unread        int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const conversationColumns = `id, type, name, recipient_id, group_id, last_message_at, unread, created_at, updated_at`

// SaveConversation upserts a conversation by id. The creation time of an
// existing row is kept.
func (s *DB) SaveConversation(c *Conversation) error {
	ts := now()
	_, err := s.db.Exec(
		`INSERT INTO conversations (`+conversationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			recipient_id = excluded.recipient_id,
			group_id = excluded.group_id,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			unread = excluded.unread,
			updated_at = excluded.updated_at`,
		c.ID, string(c.Type), c.Name, c.RecipientID, c.GroupID, c.LastMessageAt, c.Unread, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", c.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row scanner) (*Conversation, error) {
	c := &Conversation{}
	var typ, created, updated string
	if err := row.Scan(&c.ID, &typ, &c.Name, &c.RecipientID, &c.GroupID, &c.LastMessageAt, &c.Unread, &created, &updated); err != nil {
		return nil, err
	}
	c.Type = ConversationType(typ)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

// GetConversation returns ErrNotFound for an unknown id.
func (s *DB) GetConversation(id string) (*Conversation, error) {
	c, err := scanConversation(s.db.QueryRow(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

// ListConversations returns all conversations, most recently active first.
func (s *DB) ListConversations() ([]*Conversation, error) {
	rows, err := s.db.Query(`SELECT ` + conversationColumns + ` FROM conversations ORDER BY last_message_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
