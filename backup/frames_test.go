package backup

import (
	"math"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/signal-golang/siglink/signalerr"
)

var aliceACI = uuid.FromStringOrNil("11111111-1111-1111-1111-111111111111")

func TestReadVarint(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 16384, math.MaxInt64, math.MaxUint64} {
		buf := protowire.AppendVarint(nil, v)
		got, n, ok := ReadVarint(append(buf, 0xAA))
		require.True(t, ok, "value %d", v)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}

	assert.Equal(t, []byte{0x80, 0x01}, protowire.AppendVarint(nil, 128))

	_, _, ok := ReadVarint(nil)
	assert.False(t, ok)
	_, _, ok = ReadVarint([]byte{0x80, 0x80})
	assert.False(t, ok)

	overlong := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	_, _, ok = ReadVarint(overlong)
	assert.False(t, ok)
}

func TestParseContactAndMessage(t *testing.T) {
	plain := frames(
		contactRecipient(1, aliceACI.Bytes(), "Alice"),
		chatItem(1, 1, 1700000000000, "hi", false),
	)
	d, err := Parse(gzipped(t, plain))
	require.NoError(t, err)

	assert.Equal(t, 2, d.FrameCount)
	require.Len(t, d.Conversations, 1)
	assert.Equal(t, Conversation{ID: "1", RecipientACI: aliceACI.String(), Name: "Alice"}, d.Conversations[0])
	require.Len(t, d.Messages, 1)
	assert.Equal(t, Message{
		ID:             "1:1700000000000",
		ConversationID: "1",
		SenderID:       "1",
		Body:           "hi",
		Timestamp:      1700000000000,
	}, d.Messages[0])
}

func TestParseRecipientAndChatItemInOneFrame(t *testing.T) {
	plain := frames(concat(
		contactRecipient(1, aliceACI.Bytes(), "Alice"),
		chatItem(1, 1, 1700000000000, "hi", false),
	))
	d, err := Parse(gzipped(t, plain))
	require.NoError(t, err)

	assert.Equal(t, 1, d.FrameCount)
	require.Len(t, d.Conversations, 1)
	assert.Equal(t, "Alice", d.Conversations[0].Name)
	assert.Equal(t, aliceACI.String(), d.Conversations[0].RecipientACI)
	require.Len(t, d.Messages, 1)
	assert.Equal(t, "hi", d.Messages[0].Body)
	assert.Equal(t, "1:1700000000000", d.Messages[0].ID)
}

func TestParseBadGzip(t *testing.T) {
	_, err := Parse([]byte("not gzip at all"))
	assert.True(t, signalerr.Is(err, signalerr.ProtocolError))
}

func TestParseEmpty(t *testing.T) {
	d, err := Parse(gzipped(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, d.FrameCount)
	assert.Empty(t, d.Messages)
}

func TestParseSkipsCorruptFrame(t *testing.T) {
	// the middle frame claims a 50 byte field it does not have
	corrupt := concat(protowire.AppendTag(nil, frameChatItem, protowire.BytesType), []byte{50, 1, 2, 3})
	d := ParseFrames(frames(
		chatItem(1, 1, 10, "first", false),
		corrupt,
		chatItem(1, 1, 30, "third", false),
	))
	assert.Equal(t, 3, d.FrameCount)
	require.Len(t, d.Messages, 2)
	assert.Equal(t, "first", d.Messages[0].Body)
	assert.Equal(t, "third", d.Messages[1].Body)
}

func TestParseSkipsUnknownFields(t *testing.T) {
	junk := concat(
		varintField(99, 7),
		protowire.AppendFixed64(protowire.AppendTag(nil, 98, protowire.Fixed64Type), 1),
		protowire.AppendFixed32(protowire.AppendTag(nil, 97, protowire.Fixed32Type), 1),
		bytesField(96, []byte("ignored")),
	)
	d := ParseFrames(frames(concat(junk, contactRecipient(4, aliceACI.Bytes(), "Alice"))))
	require.Len(t, d.Conversations, 1)
	assert.Equal(t, "4", d.Conversations[0].ID)
}

func TestParseUnknownWireTypeEndsFrame(t *testing.T) {
	// wire type 3 (start group) cannot be skipped
	bad := concat(protowire.AppendTag(nil, 50, protowire.StartGroupType), chatItem(1, 1, 5, "lost", false))
	d := ParseFrames(frames(bad, chatItem(1, 1, 6, "kept", false)))
	assert.Equal(t, 2, d.FrameCount)
	require.Len(t, d.Messages, 1)
	assert.Equal(t, "kept", d.Messages[0].Body)
}

func TestParseStopsAtOverlongFrame(t *testing.T) {
	plain := frames(chatItem(1, 1, 5, "ok", false))
	plain = append(plain, protowire.AppendVarint(nil, 1000)...)
	plain = append(plain, 1, 2, 3)
	d := ParseFrames(plain)
	assert.Equal(t, 1, d.FrameCount)
	assert.Len(t, d.Messages, 1)
}

func TestParseGroupAndOutgoing(t *testing.T) {
	mk := make([]byte, 32)
	mk[0] = 0x42
	d := ParseFrames(frames(
		groupRecipient(2, mk),
		chatItem(2, 1, 99, "to the group", true),
	))
	require.Len(t, d.Conversations, 1)
	assert.Equal(t, mk, d.Conversations[0].GroupMasterKey)
	require.Len(t, d.Messages, 1)
	assert.True(t, d.Messages[0].Outgoing)
}

func TestParseRecipientWithoutID(t *testing.T) {
	contact := bytesField(recipientContact, bytesField(contactGivenName, []byte("Nobody")))
	d := ParseFrames(frames(bytesField(frameRecipient, contact)))
	assert.Equal(t, 1, d.FrameCount)
	assert.Empty(t, d.Conversations)
}
