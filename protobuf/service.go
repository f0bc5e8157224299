package signalservice

// EnvelopeType is the outer encryption type of an Envelope.
type EnvelopeType int32

const (
	EnvelopeUnknown            EnvelopeType = 0
	EnvelopeCiphertext         EnvelopeType = 1
	EnvelopePrekeyBundle       EnvelopeType = 3
	EnvelopeReceipt            EnvelopeType = 5
	EnvelopeUnidentifiedSender EnvelopeType = 6
	EnvelopePlaintextContent   EnvelopeType = 8
)

type ReceiptType int32

const (
	ReceiptDelivery ReceiptType = 0
	ReceiptRead     ReceiptType = 1
	ReceiptViewed   ReceiptType = 2
)

type TypingAction int32

const (
	TypingStarted TypingAction = 0
	TypingStopped TypingAction = 1
)

// Envelope wraps one encrypted Content delivered by the chat socket.
type Envelope struct {
	Type                 EnvelopeType
	SourceServiceID      string
	SourceDevice         uint32
	DestinationServiceID string
	Timestamp            uint64
	Content              []byte
	ServerGUID           string
	ServerTimestamp      uint64
}

// Content is the decrypted payload of an Envelope. At most one body is set.
type Content struct {
	DataMessage    *DataMessage
	SyncMessage    *SyncMessage
	ReceiptMessage *ReceiptMessage
	TypingMessage  *TypingMessage
}

type DataMessage struct {
	Body        string
	Attachments []*AttachmentPointer
	Flags       uint32
	ExpireTimer uint32
	Timestamp   uint64
	GroupV2     *GroupContextV2
}

type AttachmentPointer struct {
	CdnID       uint64
	ContentType string
	Key         []byte
	Size        uint32
	Digest      []byte
	FileName    string
	CdnNumber   uint32
	CdnKey      string
}

type GroupContextV2 struct {
	MasterKey []byte
	Revision  uint32
}

type SyncMessage struct {
	Sent     *SyncMessageSent
	Contacts *SyncMessageContacts
}

// SyncMessageSent is the transcript of a message this account sent from
// another device.
type SyncMessageSent struct {
	DestinationE164      string
	DestinationServiceID string
	Timestamp            uint64
	Message              *DataMessage
}

type SyncMessageContacts struct {
	Blob     *AttachmentPointer
	Complete bool
}

type ReceiptMessage struct {
	Type       ReceiptType
	Timestamps []uint64
}

type TypingMessage struct {
	Timestamp uint64
	Action    TypingAction
	GroupID   []byte
}

func (m *Envelope) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Type))
	b = appendVarint(b, 5, m.Timestamp)
	b = appendVarint(b, 7, uint64(m.SourceDevice))
	b = appendBytes(b, 8, m.Content)
	b = appendString(b, 9, m.ServerGUID)
	b = appendVarint(b, 10, m.ServerTimestamp)
	b = appendString(b, 11, m.SourceServiceID)
	b = appendString(b, 13, m.DestinationServiceID)
	return b
}

func (m *Envelope) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = Envelope{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Type = EnvelopeType(f.v)
		case 5:
			m.Timestamp = f.v
		case 7:
			m.SourceDevice = uint32(f.v)
		case 8:
			m.Content = f.b
		case 9:
			m.ServerGUID = string(f.b)
		case 10:
			m.ServerTimestamp = f.v
		case 11:
			m.SourceServiceID = string(f.b)
		case 13:
			m.DestinationServiceID = string(f.b)
		}
	}
	return nil
}

func (m *Content) Marshal() []byte {
	var b []byte
	if m.DataMessage != nil {
		b = appendMessage(b, 1, m.DataMessage.Marshal())
	}
	if m.SyncMessage != nil {
		b = appendMessage(b, 2, m.SyncMessage.Marshal())
	}
	if m.ReceiptMessage != nil {
		b = appendMessage(b, 5, m.ReceiptMessage.Marshal())
	}
	if m.TypingMessage != nil {
		b = appendMessage(b, 6, m.TypingMessage.Marshal())
	}
	return b
}

func (m *Content) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = Content{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.DataMessage = &DataMessage{}
			err = m.DataMessage.Unmarshal(f.b)
		case 2:
			m.SyncMessage = &SyncMessage{}
			err = m.SyncMessage.Unmarshal(f.b)
		case 5:
			m.ReceiptMessage = &ReceiptMessage{}
			err = m.ReceiptMessage.Unmarshal(f.b)
		case 6:
			m.TypingMessage = &TypingMessage{}
			err = m.TypingMessage.Unmarshal(f.b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *DataMessage) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Body)
	for _, a := range m.Attachments {
		b = appendMessage(b, 2, a.Marshal())
	}
	if m.Flags != 0 {
		b = appendVarint(b, 4, uint64(m.Flags))
	}
	if m.ExpireTimer != 0 {
		b = appendVarint(b, 5, uint64(m.ExpireTimer))
	}
	b = appendVarint(b, 7, m.Timestamp)
	if m.GroupV2 != nil {
		b = appendMessage(b, 15, m.GroupV2.Marshal())
	}
	return b
}

func (m *DataMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = DataMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Body = string(f.b)
		case 2:
			a := &AttachmentPointer{}
			if err := a.Unmarshal(f.b); err != nil {
				return err
			}
			m.Attachments = append(m.Attachments, a)
		case 4:
			m.Flags = uint32(f.v)
		case 5:
			m.ExpireTimer = uint32(f.v)
		case 7:
			m.Timestamp = f.v
		case 15:
			m.GroupV2 = &GroupContextV2{}
			if err := m.GroupV2.Unmarshal(f.b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *AttachmentPointer) Marshal() []byte {
	var b []byte
	if m.CdnID != 0 {
		b = appendFixed64(b, 1, m.CdnID)
	}
	b = appendString(b, 2, m.ContentType)
	b = appendBytes(b, 3, m.Key)
	b = appendVarint(b, 4, uint64(m.Size))
	b = appendBytes(b, 6, m.Digest)
	b = appendString(b, 7, m.FileName)
	if m.CdnNumber != 0 {
		b = appendVarint(b, 14, uint64(m.CdnNumber))
	}
	b = appendString(b, 15, m.CdnKey)
	return b
}

func (m *AttachmentPointer) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = AttachmentPointer{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.CdnID = f.v
		case 2:
			m.ContentType = string(f.b)
		case 3:
			m.Key = f.b
		case 4:
			m.Size = uint32(f.v)
		case 6:
			m.Digest = f.b
		case 7:
			m.FileName = string(f.b)
		case 14:
			m.CdnNumber = uint32(f.v)
		case 15:
			m.CdnKey = string(f.b)
		}
	}
	return nil
}

func (m *GroupContextV2) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.MasterKey)
	b = appendVarint(b, 2, uint64(m.Revision))
	return b
}

func (m *GroupContextV2) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = GroupContextV2{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.MasterKey = f.b
		case 2:
			m.Revision = uint32(f.v)
		}
	}
	return nil
}

func (m *SyncMessage) Marshal() []byte {
	var b []byte
	if m.Sent != nil {
		b = appendMessage(b, 1, m.Sent.Marshal())
	}
	if m.Contacts != nil {
		b = appendMessage(b, 2, m.Contacts.Marshal())
	}
	return b
}

func (m *SyncMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = SyncMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Sent = &SyncMessageSent{}
			err = m.Sent.Unmarshal(f.b)
		case 2:
			m.Contacts = &SyncMessageContacts{}
			err = m.Contacts.Unmarshal(f.b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *SyncMessageSent) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.DestinationE164)
	b = appendVarint(b, 2, m.Timestamp)
	if m.Message != nil {
		b = appendMessage(b, 3, m.Message.Marshal())
	}
	b = appendString(b, 7, m.DestinationServiceID)
	return b
}

func (m *SyncMessageSent) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = SyncMessageSent{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.DestinationE164 = string(f.b)
		case 2:
			m.Timestamp = f.v
		case 3:
			m.Message = &DataMessage{}
			if err := m.Message.Unmarshal(f.b); err != nil {
				return err
			}
		case 7:
			m.DestinationServiceID = string(f.b)
		}
	}
	return nil
}

func (m *SyncMessageContacts) Marshal() []byte {
	var b []byte
	if m.Blob != nil {
		b = appendMessage(b, 1, m.Blob.Marshal())
	}
	if m.Complete {
		b = appendVarint(b, 2, 1)
	}
	return b
}

func (m *SyncMessageContacts) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = SyncMessageContacts{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Blob = &AttachmentPointer{}
			if err := m.Blob.Unmarshal(f.b); err != nil {
				return err
			}
		case 2:
			m.Complete = f.v != 0
		}
	}
	return nil
}

func (m *ReceiptMessage) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Type))
	for _, ts := range m.Timestamps {
		b = appendVarint(b, 2, ts)
	}
	return b
}

func (m *ReceiptMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = ReceiptMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Type = ReceiptType(f.v)
		case 2:
			ts, err := repeatedVarint(f)
			if err != nil {
				return err
			}
			m.Timestamps = append(m.Timestamps, ts...)
		}
	}
	return nil
}

func (m *TypingMessage) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.Timestamp)
	b = appendVarint(b, 2, uint64(m.Action))
	b = appendBytes(b, 3, m.GroupID)
	return b
}

func (m *TypingMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = TypingMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Timestamp = f.v
		case 2:
			m.Action = TypingAction(f.v)
		case 3:
			m.GroupID = f.b
		}
	}
	return nil
}
