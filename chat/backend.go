// Package chat connects a linked device to the authenticated chat socket
// and implements the session backend on top of it.
package chat

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/attachments"
	"github.com/signal-golang/siglink/config"
	"github.com/signal-golang/siglink/contacts"
	"github.com/signal-golang/siglink/events"
	signalservice "github.com/signal-golang/siglink/protobuf"
	"github.com/signal-golang/siglink/registration"
	"github.com/signal-golang/siglink/session"
	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/transport"
)

const (
	messagePath    = "/v1/messages/%s"
	queueEmptyPath = "/api/v1/queue/empty"
	envelopePath   = "/api/v1/message"
)

const (
	mismatchedDevicesStatus = 409
	staleDevicesStatus      = 410
	rateLimitExceededStatus = 413
)

// Backend is a session.Backend over the chat websocket.
type Backend struct {
	URL       string
	Server    string
	UserAgent string
	RootCAs   *x509.CertPool
	Creds     *transport.AuthCredentials
	Self      uuid.UUID
	Protocol  Protocol
	CDNs      attachments.CDNs

	conn *Conn
	http transport.Transporter

	mu           sync.Mutex
	contactsBlob *signalservice.AttachmentPointer
}

var _ session.Backend = (*Backend)(nil)

// ErrNotListening is returned when closing a backend that was never opened.
var ErrNotListening = errors.New("[siglink-ws] there is no listening connection to stop")

// New returns a Backend for the registered account.
func New(cfg *config.Config, reg *registration.Result, p Protocol, rootCAs *x509.CertPool) *Backend {
	self, _ := reg.ACIUUID()
	return &Backend{
		URL:       cfg.ChatWebsocket,
		Server:    cfg.Server,
		UserAgent: cfg.UserAgent,
		RootCAs:   rootCAs,
		Creds:     reg.Credentials(),
		Self:      self,
		Protocol:  p,
		CDNs:      attachments.CDNs{CDN2: cfg.CDN2, CDN3: cfg.CDN3, RootCAs: rootCAs},
	}
}

// Open connects the chat socket and starts reading it.
func (b *Backend) Open(ctx context.Context) (<-chan session.Received, error) {
	if b.Protocol == nil {
		return nil, signalerr.New(signalerr.ConnectionFailed, "no message protocol configured")
	}
	header := http.Header{}
	header.Set("Authorization", b.Creds.AsBasic())
	header.Set("X-Signal-Agent", b.UserAgent)
	ws, err := transport.DialWebSocket(ctx, b.URL, header, b.RootCAs)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.ConnectionFailed, err, "connecting chat websocket")
	}
	b.conn = newConn(ws)
	b.http = transport.NewHTTPTransporter(transport.Options{
		BaseURL:   b.Server,
		User:      b.Creds.Username,
		Password:  b.Creds.Password,
		UserAgent: b.UserAgent,
		RootCAs:   b.RootCAs,
	})

	// Can only have a single goroutine call write methods
	go b.conn.writeWorker()

	out := make(chan session.Received, 16)
	go b.readLoop(ctx, b.conn, out)
	go func() {
		select {
		case <-ctx.Done():
			b.conn.close()
		case <-b.conn.done:
		}
	}()
	return out, nil
}

// Close closes the socket. The stream ends once the reader notices.
func (b *Backend) Close() error {
	if b.conn == nil {
		return ErrNotListening
	}
	b.conn.close()
	return nil
}

func (b *Backend) readLoop(ctx context.Context, c *Conn, out chan<- session.Received) {
	defer close(out)
	for {
		_, bmsg, err := c.ws.ReadMessage()
		if err != nil {
			if c.closing() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("[siglink-ws] websocket closed: %s", err)
			} else {
				select {
				case out <- session.StreamFailed{Err: err}:
				case <-c.done:
				}
			}
			c.close()
			return
		}
		wsm := &signalservice.WebSocketMessage{}
		if err := wsm.Unmarshal(bmsg); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("[siglink-ws] Failed to unmarshal websocket message")
			continue
		}
		if wsm.Type != signalservice.WebSocketMessageRequest || wsm.Request == nil {
			log.Debugln("[siglink-ws] ignoring websocket message of type", wsm.Type)
			continue
		}
		r := b.handleRequest(ctx, wsm.Request)
		c.sendAck(wsm.Request.ID)
		if r != nil {
			select {
			case out <- r:
			case <-c.done:
				return
			}
		}
	}
}

func (b *Backend) handleRequest(ctx context.Context, req *signalservice.WebSocketRequestMessage) session.Received {
	log.Debugln("[siglink-ws] Received websocket request message", req.Verb, req.Path)
	if req.Verb != http.MethodPut {
		return nil
	}
	switch req.Path {
	case queueEmptyPath:
		return session.QueueEmpty{}
	case envelopePath:
		env := &signalservice.Envelope{}
		if err := env.Unmarshal(req.Body); err != nil {
			log.WithFields(log.Fields{"error": err}).Errorln("[siglink-ws] Failed to decode envelope")
			return nil
		}
		r, err := b.handleEnvelope(ctx, env)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("[siglink-ws] Failed to handle received envelope")
			return nil
		}
		return r
	}
	log.Debugln("[siglink-ws] unhandled request path", req.Path)
	return nil
}

func (b *Backend) handleEnvelope(ctx context.Context, env *signalservice.Envelope) (session.Received, error) {
	content := &session.Content{
		Sender:          env.SourceServiceID,
		SenderDevice:    env.SourceDevice,
		Timestamp:       env.Timestamp,
		ServerTimestamp: env.ServerTimestamp,
	}
	if env.Type == signalservice.EnvelopeReceipt {
		content.Receipt = &signalservice.ReceiptMessage{
			Type:       signalservice.ReceiptDelivery,
			Timestamps: []uint64{env.Timestamp},
		}
		return session.ContentReceived{Content: content}, nil
	}

	padded, err := b.Protocol.Decrypt(ctx, env)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.ReceiveFailed, err, "decrypting envelope")
	}
	c := &signalservice.Content{}
	if err := c.Unmarshal(stripPadding(padded)); err != nil {
		return nil, signalerr.Wrap(signalerr.ProtocolError, err, "decoding content")
	}
	switch {
	case c.DataMessage != nil:
		content.Data = c.DataMessage
	case c.SyncMessage != nil && c.SyncMessage.Contacts != nil:
		b.mu.Lock()
		b.contactsBlob = c.SyncMessage.Contacts.Blob
		b.mu.Unlock()
		return session.ContactsSynced{}, nil
	case c.SyncMessage != nil && c.SyncMessage.Sent != nil:
		content.SyncSent = c.SyncMessage.Sent
	case c.ReceiptMessage != nil:
		content.Receipt = c.ReceiptMessage
	case c.TypingMessage != nil:
		content.Typing = c.TypingMessage
	default:
		log.Debugln("[siglink-ws] unknown content from", env.SourceServiceID)
		return nil, nil
	}
	return session.ContentReceived{Content: content}, nil
}

// FetchContacts downloads and decodes the last contact list the primary
// pushed. It returns nothing when no list has arrived yet.
func (b *Backend) FetchContacts(ctx context.Context) ([]contacts.Contact, error) {
	b.mu.Lock()
	blob := b.contactsBlob
	b.mu.Unlock()
	if blob == nil {
		return nil, nil
	}
	a, err := b.CDNs.Fetch(ctx, &events.Attachment{
		CdnID:     blob.CdnID,
		CdnKey:    blob.CdnKey,
		CdnNumber: blob.CdnNumber,
		Key:       blob.Key,
		Digest:    blob.Digest,
		Size:      blob.Size,
	})
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(a.R)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.AttachmentError, err, "reading contacts")
	}
	return b.Protocol.Contacts(ctx, data)
}

type sendRequest struct {
	Messages    []OutgoingMessage `json:"messages"`
	Timestamp   uint64            `json:"timestamp"`
	Destination string            `json:"destination"`
	Online      bool              `json:"online"`
	Urgent      bool              `json:"urgent"`
}

type jsonMismatchedDevices struct {
	MissingDevices []uint32 `json:"missingDevices"`
	ExtraDevices   []uint32 `json:"extraDevices"`
}

type jsonStaleDevices struct {
	StaleDevices []uint32 `json:"staleDevices"`
}

// SendDirect encrypts msg for recipient and hands it to the server.
func (b *Backend) SendDirect(ctx context.Context, recipient uuid.UUID, msg *signalservice.DataMessage) error {
	if b.http == nil {
		return signalerr.New(signalerr.SendFailed, "chat backend not open")
	}
	padded := padMessage((&signalservice.Content{DataMessage: msg}).Marshal())
	messages, err := b.Protocol.Encrypt(ctx, recipient, padded)
	if err != nil {
		return signalerr.Wrap(signalerr.CryptoError, err, "encrypting message")
	}
	body, err := json.Marshal(&sendRequest{
		Messages:    messages,
		Timestamp:   msg.Timestamp,
		Destination: recipient.String(),
		Urgent:      true,
	})
	if err != nil {
		return err
	}
	resp, err := b.http.PutJSON(ctx, fmt.Sprintf(messagePath, recipient.String()), body)
	if err != nil {
		return signalerr.Wrap(signalerr.NetworkError, err, "sending message")
	}
	defer resp.Close()
	switch resp.Status {
	case mismatchedDevicesStatus:
		var j jsonMismatchedDevices
		json.NewDecoder(resp.Body).Decode(&j)
		log.Debugf("[siglink] Mismatched devices: %+v\n", j)
		return signalerr.New(signalerr.SendFailed, "mismatched devices for %s: missing %v, extra %v", recipient, j.MissingDevices, j.ExtraDevices)
	case staleDevicesStatus:
		var j jsonStaleDevices
		json.NewDecoder(resp.Body).Decode(&j)
		log.Debugf("[siglink] Stale devices: %+v\n", j)
		return signalerr.New(signalerr.SendFailed, "stale devices for %s: %v", recipient, j.StaleDevices)
	case rateLimitExceededStatus, http.StatusTooManyRequests:
		return signalerr.New(signalerr.SendFailed, "rate limited")
	}
	if resp.IsError() {
		return signalerr.Wrap(signalerr.SendFailed, resp, "sending message")
	}
	log.Debugf("[siglink] message to %s accepted", recipient)
	return nil
}

// SendGroup sends msg to every member of the group except this account.
// The first failure is returned once every member was tried.
func (b *Backend) SendGroup(ctx context.Context, masterKey []byte, msg *signalservice.DataMessage) error {
	members, err := b.Protocol.GroupMembers(ctx, masterKey)
	if err != nil {
		return signalerr.Wrap(signalerr.SendFailed, err, "resolving group members")
	}
	var first error
	failed := 0
	for _, m := range members {
		if uuid.Equal(m, b.Self) {
			continue
		}
		if err := b.SendDirect(ctx, m, msg); err != nil {
			log.WithFields(log.Fields{"error": err}).Warnf("[siglink] group send to %s failed", m)
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return signalerr.Wrap(signalerr.SendFailed, first, fmt.Sprintf("group send failed for %d of %d members", failed, len(members)))
	}
	return nil
}
