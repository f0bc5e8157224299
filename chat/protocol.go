package chat

import (
	"context"

	uuid "github.com/satori/go.uuid"

	"github.com/signal-golang/siglink/contacts"
	signalservice "github.com/signal-golang/siglink/protobuf"
)

// OutgoingMessage is one device's ciphertext of a sent message.
type OutgoingMessage struct {
	Type               int32  `json:"type"`
	DestDeviceID       uint32 `json:"destinationDeviceId"`
	DestRegistrationID uint32 `json:"destinationRegistrationId"`
	Content            string `json:"content"`
}

// Protocol is the account's session cryptography and group state. The
// backend only moves bytes; everything that needs a ratchet or group
// credentials goes through here.
type Protocol interface {
	// Decrypt returns the padded Content carried by env.
	Decrypt(ctx context.Context, env *signalservice.Envelope) ([]byte, error)
	// Encrypt seals padded content for every device of recipient.
	Encrypt(ctx context.Context, recipient uuid.UUID, padded []byte) ([]OutgoingMessage, error)
	// GroupMembers lists the ACIs of the group with the given master key.
	GroupMembers(ctx context.Context, masterKey []byte) ([]uuid.UUID, error)
	// Contacts decodes the contact list pushed by the primary device.
	Contacts(ctx context.Context, blob []byte) ([]contacts.Contact, error)
}

func padMessage(msg []byte) []byte {
	l := (len(msg) + 160)
	l = l - l%160
	n := make([]byte, l)
	copy(n, msg)
	n[len(msg)] = 0x80
	return n
}

func stripPadding(msg []byte) []byte {
	for i := len(msg) - 1; i >= 0; i-- {
		if msg[i] == 0x80 {
			return msg[:i]
		}
	}
	return msg
}
