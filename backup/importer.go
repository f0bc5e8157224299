package backup

import (
	"encoding/base64"

	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/store"
)

// Repository receives imported conversations and messages. Both saves
// overwrite by id.
type Repository interface {
	SaveConversation(c *store.Conversation) error
	SaveMessage(m *store.Message) error
}

// key is the id the conversation is stored under: the base64 group master
// key for groups, the ACI for contacts, the backup's raw id otherwise.
func (c *Conversation) key() string {
	switch {
	case len(c.GroupMasterKey) > 0:
		return base64.StdEncoding.EncodeToString(c.GroupMasterKey)
	case c.RecipientACI != "":
		return c.RecipientACI
	}
	return c.ID
}

func (c *Conversation) toStore() *store.Conversation {
	sc := &store.Conversation{ID: c.key(), Type: store.Private, Name: c.Name, RecipientID: c.RecipientACI}
	if len(c.GroupMasterKey) > 0 {
		sc.Type = store.Group
		sc.GroupID = sc.ID
		sc.RecipientID = ""
	}
	if sc.Name == "" {
		switch {
		case sc.Type == store.Group:
			sc.Name = "Group"
		case c.RecipientACI != "":
			sc.Name = c.RecipientACI
		default:
			sc.Name = "Unknown"
		}
	}
	return sc
}

// Import stores the parsed backup. Messages without a body are skipped. A
// row that fails to save is logged and skipped; an error is returned only
// when nothing could be saved at all.
func Import(d *Data, repo Repository) (convs, msgs int, err error) {
	byID := make(map[string]*Conversation, len(d.Conversations))
	for i := range d.Conversations {
		byID[d.Conversations[i].ID] = &d.Conversations[i]
	}

	latest := map[string]int64{}
	var out []*store.Message
	for _, m := range d.Messages {
		if m.Body == "" {
			continue
		}
		sm := &store.Message{
			ID:              m.ID,
			ConversationID:  m.ConversationID,
			Sender:          m.SenderID,
			Body:            m.Body,
			Timestamp:       m.Timestamp,
			ServerTimestamp: m.Timestamp,
			Outgoing:        m.Outgoing,
			Status:          store.Read,
		}
		if c, ok := byID[m.ConversationID]; ok {
			sm.ConversationID = c.key()
		}
		if m.Outgoing {
			sm.Sender = store.SelfSender
		} else if a, ok := byID[m.SenderID]; ok && a.RecipientACI != "" {
			sm.Sender = a.RecipientACI
		}
		if m.Timestamp > latest[sm.ConversationID] {
			latest[sm.ConversationID] = m.Timestamp
		}
		out = append(out, sm)
	}

	var lastErr error
	for i := range d.Conversations {
		sc := d.Conversations[i].toStore()
		sc.LastMessageAt = latest[sc.ID]
		if err := repo.SaveConversation(sc); err != nil {
			log.WithFields(log.Fields{"error": err}).Warnf("[siglink-backup] failed to save conversation %s", sc.ID)
			lastErr = err
			continue
		}
		convs++
	}
	for _, sm := range out {
		if err := repo.SaveMessage(sm); err != nil {
			log.WithFields(log.Fields{"error": err}).Warnf("[siglink-backup] failed to save message %s", sm.ID)
			lastErr = err
			continue
		}
		msgs++
	}

	log.Infof("[siglink-backup] import complete: %d conversations, %d messages", convs, msgs)

	if lastErr != nil && convs == 0 && msgs == 0 {
		return 0, 0, signalerr.Wrap(signalerr.StorageError, lastErr, "importing backup")
	}
	return convs, msgs, nil
}
