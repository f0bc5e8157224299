package backup

import (
	"bytes"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/utils"
)

// Frame fields of the backup stream.
const (
	frameRecipient = 2
	frameChatItem  = 4

	recipientID      = 1
	recipientContact = 2
	recipientGroup   = 3

	contactACI       = 1
	contactGivenName = 11

	groupMasterKey = 1

	chatItemChatID   = 1
	chatItemAuthorID = 2
	chatItemDateSent = 3
	chatItemOutgoing = 9
	chatItemStandard = 11

	standardText = 2
	textBody     = 1
)

// Message is a chat item found in the backup.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	Timestamp      int64
	Outgoing       bool
}

// Conversation is a recipient found in the backup. A contact carries an
// ACI, a group its master key.
type Conversation struct {
	ID             string
	RecipientACI   string
	GroupMasterKey []byte
	Name           string
}

// Data is the result of parsing a backup.
type Data struct {
	Messages      []Message
	Conversations []Conversation
	FrameCount    int
}

// Parse decompresses a backup and parses its frames. Only a broken gzip
// stream is an error; malformed frames are skipped.
func Parse(compressed []byte) (*Data, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, signalerr.Wrap(signalerr.ProtocolError, err, "gzip decompression failed")
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.ProtocolError, err, "gzip decompression failed")
	}
	log.Debugf("[siglink-backup] decompressed %d to %d bytes", len(compressed), len(plain))
	return ParseFrames(plain), nil
}

// ParseFrames parses a sequence of length-delimited frames. The scan stops
// at a bad length prefix or a frame running past the end of plain.
func ParseFrames(plain []byte) *Data {
	d := &Data{}
	off := 0
	for off < len(plain) {
		l, n, ok := ReadVarint(plain[off:])
		if !ok {
			break
		}
		off += n
		if l > uint64(len(plain)-off) {
			log.Warnln("[siglink-backup] frame extends beyond data boundary, stopping")
			break
		}
		frame := plain[off : off+int(l)]
		off += int(l)
		d.FrameCount++
		d.parseFrame(frame)
	}
	log.WithFields(log.Fields{
		"frames":        d.FrameCount,
		"conversations": len(d.Conversations),
		"messages":      len(d.Messages),
	}).Infoln("[siglink-backup] parsed backup")
	return d
}

func (d *Data) parseFrame(frame []byte) {
	r := fieldReader{buf: frame}
	for {
		f, ok := r.next()
		if !ok {
			return
		}
		if f.typ != wireBytes {
			continue
		}
		switch f.num {
		case frameRecipient:
			if c, ok := parseRecipient(f.b); ok {
				d.Conversations = append(d.Conversations, c)
			}
		case frameChatItem:
			d.Messages = append(d.Messages, parseChatItem(f.b))
		}
	}
}

func parseRecipient(b []byte) (Conversation, bool) {
	var c Conversation
	hasID := false
	r := fieldReader{buf: b}
	for {
		f, ok := r.next()
		if !ok {
			break
		}
		switch {
		case f.num == recipientID && f.typ == wireVarint:
			c.ID = strconv.FormatUint(f.v, 10)
			hasID = true
		case f.num == recipientContact && f.typ == wireBytes:
			c.RecipientACI, c.Name = parseContact(f.b)
		case f.num == recipientGroup && f.typ == wireBytes:
			c.GroupMasterKey = parseGroup(f.b)
		}
	}
	return c, hasID
}

func parseContact(b []byte) (aci, name string) {
	r := fieldReader{buf: b}
	for {
		f, ok := r.next()
		if !ok {
			return aci, name
		}
		if f.typ != wireBytes {
			continue
		}
		switch f.num {
		case contactACI:
			if s, err := utils.UUIDStr(f.b); err == nil {
				aci = s
			}
		case contactGivenName:
			name = string(f.b)
		}
	}
}

func parseGroup(b []byte) []byte {
	r := fieldReader{buf: b}
	for {
		f, ok := r.next()
		if !ok {
			return nil
		}
		if f.num == groupMasterKey && f.typ == wireBytes {
			return f.b
		}
	}
}

func parseChatItem(b []byte) Message {
	var m Message
	r := fieldReader{buf: b}
	for {
		f, ok := r.next()
		if !ok {
			break
		}
		switch {
		case f.num == chatItemChatID && f.typ == wireVarint:
			m.ConversationID = strconv.FormatUint(f.v, 10)
		case f.num == chatItemAuthorID && f.typ == wireVarint:
			m.SenderID = strconv.FormatUint(f.v, 10)
		case f.num == chatItemDateSent && f.typ == wireVarint:
			m.Timestamp = int64(f.v)
		case f.num == chatItemOutgoing && f.typ == wireBytes:
			m.Outgoing = true
		case f.num == chatItemStandard && f.typ == wireBytes:
			m.Body = parseStandardMessage(f.b)
		}
	}
	// dateSent alone repeats across chats
	m.ID = m.ConversationID + ":" + strconv.FormatInt(m.Timestamp, 10)
	return m
}

func parseStandardMessage(b []byte) string {
	r := fieldReader{buf: b}
	for {
		f, ok := r.next()
		if !ok {
			return ""
		}
		if f.num == standardText && f.typ == wireBytes {
			return parseText(f.b)
		}
	}
}

func parseText(b []byte) string {
	r := fieldReader{buf: b}
	for {
		f, ok := r.next()
		if !ok {
			return ""
		}
		if f.num == textBody && f.typ == wireBytes {
			return string(f.b)
		}
	}
}
