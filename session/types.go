// Package session runs the transport loop of a linked device: one receive
// stream and one outbound command queue, both serviced by a single
// goroutine that owns the backend.
package session

import (
	"context"

	uuid "github.com/satori/go.uuid"

	"github.com/signal-golang/siglink/contacts"
	"github.com/signal-golang/siglink/events"
	signalservice "github.com/signal-golang/siglink/protobuf"
)

// SendCommand is an outbound request executed by the loop. Its Reply
// channel receives exactly one value and must be buffered.
type SendCommand interface {
	isSendCommand()
}

// DirectMessage sends Text to a single account.
type DirectMessage struct {
	Recipient uuid.UUID
	Text      string
	Timestamp uint64
	Reply     chan<- error
}

// GroupMessage sends Text to the group identified by its master key.
type GroupMessage struct {
	GroupKey  []byte
	Text      string
	Timestamp uint64
	Reply     chan<- error
}

func (DirectMessage) isSendCommand() {}
func (GroupMessage) isSendCommand()  {}

// Received is one item of the backend's receive stream.
type Received interface {
	isReceived()
}

// QueueEmpty marks that the server has delivered every queued message.
type QueueEmpty struct{}

// ContactsSynced marks that the primary pushed a new contact list.
type ContactsSynced struct{}

type ContentReceived struct{ Content *Content }

// StreamFailed ends the stream with an unrecoverable error.
type StreamFailed struct{ Err error }

func (QueueEmpty) isReceived()      {}
func (ContactsSynced) isReceived()  {}
func (ContentReceived) isReceived() {}
func (StreamFailed) isReceived()    {}

// Content is a decrypted envelope. At most one of the bodies is set.
type Content struct {
	Sender          string
	SenderDevice    uint32
	Timestamp       uint64
	ServerTimestamp uint64

	Data     *signalservice.DataMessage
	SyncSent *signalservice.SyncMessageSent
	Receipt  *signalservice.ReceiptMessage
	Typing   *signalservice.TypingMessage
}

// Backend is the session object the loop drives. It is only ever used from
// the loop goroutine, except for Close.
type Backend interface {
	// Open starts the receive stream. The channel is closed when the
	// stream ends.
	Open(ctx context.Context) (<-chan Received, error)
	SendDirect(ctx context.Context, recipient uuid.UUID, msg *signalservice.DataMessage) error
	SendGroup(ctx context.Context, masterKey []byte, msg *signalservice.DataMessage) error
	FetchContacts(ctx context.Context) ([]contacts.Contact, error)
	Close() error
}

// Sink persists what the loop receives.
type Sink interface {
	SaveIncoming(in *events.IncomingMessage) error
	ListContacts() ([]contacts.Contact, error)
	SaveContact(c *contacts.Contact) error
}
