// Package events defines the lifecycle and status events produced by the
// linking, history sync and transport code, and the bus that carries them to
// a single consumer.
package events

import "fmt"

// ConnectionState is the state of the transport session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event is implemented by every event variant. The set is closed.
type Event interface {
	isEvent()
}

// Attachment describes an attachment pointer carried by an incoming message.
type Attachment struct {
	ContentType string
	FileName    string
	Size        uint32
	CdnID       uint64
	CdnKey      string
	CdnNumber   uint32
	Key         []byte
	Digest      []byte
}

// IncomingMessage is the normalized shape of a received or sync-echoed
// message.
type IncomingMessage struct {
	ID              string
	Sender          string
	ConversationID  string
	Group           bool
	Body            string
	Attachments     []Attachment
	Timestamp       int64
	ServerTimestamp int64
	Outgoing        bool
}

type ConnectionStateChanged struct{ State ConnectionState }

type ProvisioningURLReady struct{ URL string }

type LinkingCompleted struct {
	ACI      string
	DeviceID uint32
}

type LinkingFailed struct{ Reason string }

// HistorySyncAvailable is emitted after linking when the primary device
// offered a transfer archive.
type HistorySyncAvailable struct{}

// HistorySyncProgress reports the pipeline stage of a running history sync.
// Attempt counts archive polls and is zero for the other stages.
type HistorySyncProgress struct {
	Stage   string
	Attempt int
}

type HistorySyncCompleted struct {
	Conversations int
	Messages      int
}

type HistorySyncFailed struct{ Reason string }

type MessageReceived struct{ Message IncomingMessage }

type MessageSent struct{ MessageID string }

type DeliveryReceipt struct {
	MessageID string
	Recipient string
}

type ReadReceipt struct {
	MessageID string
	Recipient string
}

type TypingStarted struct {
	ConversationID string
	Sender         string
}

type TypingStopped struct {
	ConversationID string
	Sender         string
}

type ContactUpdated struct{ ContactID string }

type GroupUpdated struct{ GroupID string }

// SyncCompleted is emitted once the server has drained the queued messages.
type SyncCompleted struct{}

type Error struct{ Message string }

func (ConnectionStateChanged) isEvent() {}
func (ProvisioningURLReady) isEvent()   {}
func (LinkingCompleted) isEvent()       {}
func (LinkingFailed) isEvent()          {}
func (HistorySyncAvailable) isEvent()   {}
func (HistorySyncProgress) isEvent()    {}
func (HistorySyncCompleted) isEvent()   {}
func (HistorySyncFailed) isEvent()      {}
func (MessageReceived) isEvent()        {}
func (MessageSent) isEvent()            {}
func (DeliveryReceipt) isEvent()        {}
func (ReadReceipt) isEvent()            {}
func (TypingStarted) isEvent()          {}
func (TypingStopped) isEvent()          {}
func (ContactUpdated) isEvent()         {}
func (GroupUpdated) isEvent()           {}
func (SyncCompleted) isEvent()          {}
func (Error) isEvent()                  {}
