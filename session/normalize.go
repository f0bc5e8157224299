package session

import (
	"encoding/base64"
	"strconv"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/events"
	signalservice "github.com/signal-golang/siglink/protobuf"
)

// incoming turns a data message or the transcript of one sent from another
// device into the shape storage expects. It returns nil for messages
// without text or attachments.
func incoming(c *Content) *events.IncomingMessage {
	var (
		dm       *signalservice.DataMessage
		peer     string
		outgoing bool
		ts       uint64
	)
	switch {
	case c.Data != nil:
		dm, peer, ts = c.Data, c.Sender, c.Data.Timestamp
	case c.SyncSent != nil && c.SyncSent.Message != nil:
		dm, outgoing, ts = c.SyncSent.Message, true, c.SyncSent.Timestamp
		peer = c.SyncSent.DestinationServiceID
		if peer == "" {
			peer = c.SyncSent.DestinationE164
		}
	default:
		return nil
	}
	if dm.Body == "" && len(dm.Attachments) == 0 {
		log.Debugf("[siglink] dropping empty message from %s", c.Sender)
		return nil
	}
	if ts == 0 {
		ts = c.Timestamp
	}

	in := &events.IncomingMessage{
		ID:              uuid.NewV4().String(),
		Sender:          c.Sender,
		ConversationID:  peer,
		Body:            dm.Body,
		Timestamp:       int64(ts),
		ServerTimestamp: int64(c.ServerTimestamp),
		Outgoing:        outgoing,
	}
	if in.ServerTimestamp == 0 {
		in.ServerTimestamp = in.Timestamp
	}
	if g := dm.GroupV2; g != nil && len(g.MasterKey) > 0 {
		in.ConversationID = base64.StdEncoding.EncodeToString(g.MasterKey)
		in.Group = true
	}
	for _, a := range dm.Attachments {
		in.Attachments = append(in.Attachments, events.Attachment{
			ContentType: a.ContentType,
			FileName:    a.FileName,
			Size:        a.Size,
			CdnID:       a.CdnID,
			CdnKey:      a.CdnKey,
			CdnNumber:   a.CdnNumber,
			Key:         a.Key,
			Digest:      a.Digest,
		})
	}
	return in
}

// receipts yields one event per acknowledged timestamp.
func receipts(sender string, rm *signalservice.ReceiptMessage) []events.Event {
	var evs []events.Event
	for _, ts := range rm.Timestamps {
		id := strconv.FormatUint(ts, 10)
		switch rm.Type {
		case signalservice.ReceiptDelivery:
			evs = append(evs, events.DeliveryReceipt{MessageID: id, Recipient: sender})
		case signalservice.ReceiptRead:
			evs = append(evs, events.ReadReceipt{MessageID: id, Recipient: sender})
		default:
			log.Debugf("[siglink] ignoring receipt type %d from %s", rm.Type, sender)
		}
	}
	return evs
}

func typing(sender string, tm *signalservice.TypingMessage) events.Event {
	conv := sender
	if len(tm.GroupID) > 0 {
		conv = base64.StdEncoding.EncodeToString(tm.GroupID)
	}
	if tm.Action == signalservice.TypingStopped {
		return events.TypingStopped{ConversationID: conv, Sender: sender}
	}
	return events.TypingStarted{ConversationID: conv, Sender: sender}
}
