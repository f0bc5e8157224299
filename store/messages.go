package store

import (
	"fmt"

	"github.com/signal-golang/siglink/events"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	Sending   MessageStatus = "sending"
	Sent      MessageStatus = "sent"
	Delivered MessageStatus = "delivered"
	Read      MessageStatus = "read"
	Failed    MessageStatus = "failed"
)

// SelfSender marks messages written by this account.
const SelfSender = "self"

type Message struct {
	ID              string
	ConversationID  string
	Sender          string
	Body            string
	Timestamp       int64
	ServerTimestamp int64
	Outgoing        bool
	Status          MessageStatus
}

// SaveMessage upserts a message by id.
func (s *DB) SaveMessage(m *Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_id, sender, body, timestamp, server_timestamp, outgoing, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			sender = excluded.sender,
			body = excluded.body,
			timestamp = excluded.timestamp,
			server_timestamp = excluded.server_timestamp,
			outgoing = excluded.outgoing,
			status = excluded.status`,
		m.ID, m.ConversationID, m.Sender, m.Body, m.Timestamp, m.ServerTimestamp, boolInt(m.Outgoing), string(m.Status), now(),
	)
	if err != nil {
		return fmt.Errorf("save message %s: %w", m.ID, err)
	}
	return nil
}

// ListMessages returns up to limit of the latest messages of a
// conversation, oldest first. limit <= 0 returns all of them.
func (s *DB) ListMessages(conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, conversation_id, sender, body, timestamp, server_timestamp, outgoing, status FROM (
			SELECT * FROM messages WHERE conversation_id = ? ORDER BY timestamp DESC LIMIT ?
		 ) ORDER BY timestamp ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		var outgoing int
		var status string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Body, &m.Timestamp, &m.ServerTimestamp, &outgoing, &status); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Outgoing = outgoing != 0
		m.Status = MessageStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveIncoming stores a received or sync-echoed message and creates or
// touches its conversation.
func (s *DB) SaveIncoming(in *events.IncomingMessage) error {
	c, err := s.GetConversation(in.ConversationID)
	if err == ErrNotFound {
		c = &Conversation{ID: in.ConversationID, Type: Private, RecipientID: in.ConversationID, Name: in.ConversationID}
		if in.Group {
			c.Type = Group
			c.RecipientID = ""
			c.GroupID = in.ConversationID
			c.Name = "Group"
		}
	} else if err != nil {
		return err
	}
	if in.Timestamp > c.LastMessageAt {
		c.LastMessageAt = in.Timestamp
	}
	status := Delivered
	sender := in.Sender
	if in.Outgoing {
		status = Sent
		sender = SelfSender
	} else {
		c.Unread++
	}
	if err := s.SaveConversation(c); err != nil {
		return err
	}
	return s.SaveMessage(&Message{
		ID:              in.ID,
		ConversationID:  in.ConversationID,
		Sender:          sender,
		Body:            in.Body,
		Timestamp:       in.Timestamp,
		ServerTimestamp: in.ServerTimestamp,
		Outgoing:        in.Outgoing,
		Status:          status,
	})
}
