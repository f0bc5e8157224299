package backup

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/store"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestImportContactConversation(t *testing.T) {
	db := openStore(t)
	d := ParseFrames(frames(
		contactRecipient(1, aliceACI.Bytes(), "Alice"),
		chatItem(1, 1, 1700000000000, "hi", false),
	))
	convs, msgs, err := Import(d, db)
	require.NoError(t, err)
	assert.Equal(t, 1, convs)
	assert.Equal(t, 1, msgs)

	c, err := db.GetConversation(aliceACI.String())
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.Name)
	assert.Equal(t, store.Private, c.Type)
	assert.Equal(t, aliceACI.String(), c.RecipientID)
	assert.Equal(t, int64(1700000000000), c.LastMessageAt)

	list, err := db.ListMessages(aliceACI.String(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hi", list[0].Body)
	assert.Equal(t, aliceACI.String(), list[0].Sender)
	assert.Equal(t, "1:1700000000000", list[0].ID)
	assert.False(t, list[0].Outgoing)
}

func TestImportIsIdempotent(t *testing.T) {
	db := openStore(t)
	d := ParseFrames(frames(
		contactRecipient(1, aliceACI.Bytes(), "Alice"),
		chatItem(1, 1, 1, "one", false),
		chatItem(1, 1, 2, "two", true),
	))
	for i := 0; i < 2; i++ {
		_, msgs, err := Import(d, db)
		require.NoError(t, err)
		assert.Equal(t, 2, msgs)
	}
	convs, err := db.ListConversations()
	require.NoError(t, err)
	assert.Len(t, convs, 1)
	list, err := db.ListMessages(aliceACI.String(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestImportGroupAndOutgoing(t *testing.T) {
	db := openStore(t)
	mk := make([]byte, 32)
	mk[31] = 7
	d := ParseFrames(frames(
		groupRecipient(2, mk),
		chatItem(2, 1, 50, "hello group", true),
	))
	_, _, err := Import(d, db)
	require.NoError(t, err)

	id := base64.StdEncoding.EncodeToString(mk)
	c, err := db.GetConversation(id)
	require.NoError(t, err)
	assert.Equal(t, store.Group, c.Type)
	assert.Equal(t, "Group", c.Name)
	assert.Equal(t, id, c.GroupID)

	list, err := db.ListMessages(id, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, store.SelfSender, list[0].Sender)
	assert.True(t, list[0].Outgoing)
}

func TestImportNamesAndEmptyBodies(t *testing.T) {
	db := openStore(t)
	d := &Data{
		Conversations: []Conversation{
			{ID: "3"},
			{ID: "4", RecipientACI: aliceACI.String()},
		},
		Messages: []Message{
			{ID: "1", ConversationID: "3", SenderID: "9", Timestamp: 1},
			{ID: "2", ConversationID: "3", SenderID: "9", Body: "kept", Timestamp: 2},
		},
	}
	convs, msgs, err := Import(d, db)
	require.NoError(t, err)
	assert.Equal(t, 2, convs)
	assert.Equal(t, 1, msgs)

	c, err := db.GetConversation("3")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", c.Name)
	c, err = db.GetConversation(aliceACI.String())
	require.NoError(t, err)
	assert.Equal(t, aliceACI.String(), c.Name)

	list, err := db.ListMessages("3", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "9", list[0].Sender)
}

type failingRepo struct{ failMessages bool }

func (f *failingRepo) SaveConversation(*store.Conversation) error {
	return errors.New("disk full")
}

func (f *failingRepo) SaveMessage(*store.Message) error {
	if f.failMessages {
		return errors.New("disk full")
	}
	return nil
}

func TestImportStorageErrors(t *testing.T) {
	d := ParseFrames(frames(
		contactRecipient(1, aliceACI.Bytes(), "Alice"),
		chatItem(1, 1, 1, "hi", false),
	))

	_, _, err := Import(d, &failingRepo{failMessages: true})
	assert.True(t, signalerr.Is(err, signalerr.StorageError))

	convs, msgs, err := Import(d, &failingRepo{})
	require.NoError(t, err)
	assert.Equal(t, 0, convs)
	assert.Equal(t, 1, msgs)
}
