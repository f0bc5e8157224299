package signalservice

import "errors"

// WebSocketMessageType discriminates requests from responses.
type WebSocketMessageType int32

const (
	WebSocketMessageUnknown  WebSocketMessageType = 0
	WebSocketMessageRequest  WebSocketMessageType = 1
	WebSocketMessageResponse WebSocketMessageType = 2
)

// WebSocketMessage is the RPC envelope of every binary frame on the
// provisioning and chat sockets.
type WebSocketMessage struct {
	Type     WebSocketMessageType
	Request  *WebSocketRequestMessage
	Response *WebSocketResponseMessage
}

type WebSocketRequestMessage struct {
	Verb    string
	Path    string
	Body    []byte
	Headers []string
	ID      uint64
}

type WebSocketResponseMessage struct {
	ID      uint64
	Status  uint32
	Message string
	Headers []string
	Body    []byte
}

func (m *WebSocketMessage) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Type))
	if m.Request != nil {
		b = appendMessage(b, 2, m.Request.Marshal())
	}
	if m.Response != nil {
		b = appendMessage(b, 3, m.Response.Marshal())
	}
	return b
}

func (m *WebSocketMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = WebSocketMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Type = WebSocketMessageType(f.v)
		case 2:
			m.Request = &WebSocketRequestMessage{}
			if err := m.Request.Unmarshal(f.b); err != nil {
				return err
			}
		case 3:
			m.Response = &WebSocketResponseMessage{}
			if err := m.Response.Unmarshal(f.b); err != nil {
				return err
			}
		}
	}
	if m.Type == WebSocketMessageRequest && m.Request == nil {
		return errors.New("request message without request")
	}
	return nil
}

func (m *WebSocketRequestMessage) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Verb)
	b = appendString(b, 2, m.Path)
	b = appendBytes(b, 3, m.Body)
	b = appendVarint(b, 4, m.ID)
	for _, h := range m.Headers {
		b = appendString(b, 5, h)
	}
	return b
}

func (m *WebSocketRequestMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = WebSocketRequestMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Verb = string(f.b)
		case 2:
			m.Path = string(f.b)
		case 3:
			m.Body = f.b
		case 4:
			m.ID = f.v
		case 5:
			m.Headers = append(m.Headers, string(f.b))
		}
	}
	return nil
}

func (m *WebSocketResponseMessage) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.ID)
	b = appendVarint(b, 2, uint64(m.Status))
	b = appendString(b, 3, m.Message)
	b = appendBytes(b, 4, m.Body)
	for _, h := range m.Headers {
		b = appendString(b, 5, h)
	}
	return b
}

func (m *WebSocketResponseMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = WebSocketResponseMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.ID = f.v
		case 2:
			m.Status = uint32(f.v)
		case 3:
			m.Message = string(f.b)
		case 4:
			m.Body = f.b
		case 5:
			m.Headers = append(m.Headers, string(f.b))
		}
	}
	return nil
}

// OKResponse builds the acknowledgment for the request with the given id.
func OKResponse(id uint64) *WebSocketMessage {
	return &WebSocketMessage{
		Type: WebSocketMessageResponse,
		Response: &WebSocketResponseMessage{
			ID:      id,
			Status:  200,
			Message: "OK",
		},
	}
}
