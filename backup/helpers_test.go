package backup

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func bytesField(num protowire.Number, v []byte) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func varintField(num protowire.Number, v uint64) []byte {
	b := protowire.AppendTag(nil, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func contactRecipient(id uint64, aci []byte, name string) []byte {
	contact := concat(bytesField(contactACI, aci), bytesField(contactGivenName, []byte(name)))
	return bytesField(frameRecipient, concat(varintField(recipientID, id), bytesField(recipientContact, contact)))
}

func groupRecipient(id uint64, masterKey []byte) []byte {
	group := bytesField(groupMasterKey, masterKey)
	return bytesField(frameRecipient, concat(varintField(recipientID, id), bytesField(recipientGroup, group)))
}

func chatItem(chatID, authorID, dateSent uint64, body string, outgoing bool) []byte {
	item := concat(
		varintField(chatItemChatID, chatID),
		varintField(chatItemAuthorID, authorID),
		varintField(chatItemDateSent, dateSent),
	)
	if outgoing {
		item = append(item, bytesField(chatItemOutgoing, []byte{})...)
	}
	if body != "" {
		text := bytesField(textBody, []byte(body))
		item = append(item, bytesField(chatItemStandard, bytesField(standardText, text))...)
	}
	return bytesField(frameChatItem, item)
}

// frames length-prefixes every frame body.
func frames(bodies ...[]byte) []byte {
	var out []byte
	for _, b := range bodies {
		out = protowire.AppendVarint(out, uint64(len(b)))
		out = append(out, b...)
	}
	return out
}

func gzipped(t *testing.T, b []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
