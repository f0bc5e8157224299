package chat

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-golang/siglink/attachments"
	"github.com/signal-golang/siglink/contacts"
	"github.com/signal-golang/siglink/crypto"
	signalservice "github.com/signal-golang/siglink/protobuf"
	"github.com/signal-golang/siglink/session"
	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/transport"
)

var (
	selfACI = uuid.FromStringOrNil("11111111-1111-1111-1111-111111111111")
	bobACI  = uuid.FromStringOrNil("22222222-2222-2222-2222-222222222222")
)

// plainProtocol treats envelope content as already decrypted.
type plainProtocol struct {
	members []uuid.UUID
}

func (plainProtocol) Decrypt(ctx context.Context, env *signalservice.Envelope) ([]byte, error) {
	return env.Content, nil
}

func (plainProtocol) Encrypt(ctx context.Context, recipient uuid.UUID, padded []byte) ([]OutgoingMessage, error) {
	return []OutgoingMessage{{Type: 1, DestDeviceID: 1, DestRegistrationID: 7, Content: base64.StdEncoding.EncodeToString(padded)}}, nil
}

func (p plainProtocol) GroupMembers(ctx context.Context, masterKey []byte) ([]uuid.UUID, error) {
	return p.members, nil
}

func (plainProtocol) Contacts(ctx context.Context, blob []byte) ([]contacts.Contact, error) {
	return []contacts.Contact{{UUID: string(blob)}}, nil
}

type putRequest struct {
	path string
	user string
	body sendRequest
}

type fakeServer struct {
	*httptest.Server
	conns  chan *websocket.Conn
	auth   chan string
	status int

	mu   sync.Mutex
	puts []putRequest
	cdn  map[string][]byte
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{
		conns:  make(chan *websocket.Conn, 1),
		auth:   make(chan string, 1),
		status: http.StatusOK,
		cdn:    map[string][]byte{},
	}
	up := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/websocket/", func(w http.ResponseWriter, r *http.Request) {
		fs.auth <- r.Header.Get("Authorization")
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.conns <- ws
	})
	mux.HandleFunc("/v1/messages/", func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		var body sendRequest
		json.NewDecoder(r.Body).Decode(&body)
		fs.mu.Lock()
		fs.puts = append(fs.puts, putRequest{path: r.URL.Path, user: user, body: body})
		status := fs.status
		fs.mu.Unlock()
		w.WriteHeader(status)
		if status == http.StatusConflict {
			w.Write([]byte(`{"missingDevices":[2],"extraDevices":[]}`))
		}
	})
	mux.HandleFunc("/cdn3/attachments/", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		b, ok := fs.cdn[strings.TrimPrefix(r.URL.Path, "/cdn3/attachments/")]
		fs.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(b)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) backend(p Protocol) *Backend {
	return &Backend{
		URL:       "ws" + strings.TrimPrefix(fs.URL, "http") + "/v1/websocket/",
		Server:    fs.URL,
		UserAgent: "siglink-test",
		Creds:     &transport.AuthCredentials{Username: selfACI.String() + ".2", Password: "pw"},
		Self:      selfACI,
		Protocol:  p,
		CDNs:      attachments.CDNs{CDN2: fs.URL + "/cdn2", CDN3: fs.URL + "/cdn3"},
	}
}

func open(t *testing.T, fs *fakeServer, p Protocol) (*Backend, <-chan session.Received, *websocket.Conn) {
	t.Helper()
	b := fs.backend(p)
	stream, err := b.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	select {
	case ws := <-fs.conns:
		return b, stream, ws
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection")
		return nil, nil, nil
	}
}

func request(t *testing.T, ws *websocket.Conn, id uint64, path string, body []byte) {
	t.Helper()
	msg := &signalservice.WebSocketMessage{
		Type:    signalservice.WebSocketMessageRequest,
		Request: &signalservice.WebSocketRequestMessage{Verb: "PUT", Path: path, Body: body, ID: id},
	}
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, msg.Marshal()))
}

func readAck(t *testing.T, ws *websocket.Conn, id uint64) {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := ws.ReadMessage()
	require.NoError(t, err)
	msg := &signalservice.WebSocketMessage{}
	require.NoError(t, msg.Unmarshal(b))
	require.Equal(t, signalservice.WebSocketMessageResponse, msg.Type)
	assert.Equal(t, id, msg.Response.ID)
	assert.Equal(t, uint32(200), msg.Response.Status)
}

func next(t *testing.T, stream <-chan session.Received) session.Received {
	t.Helper()
	select {
	case r := <-stream:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream item")
		return nil
	}
}

func envelope(sender string, ts uint64, c *signalservice.Content) []byte {
	env := &signalservice.Envelope{
		Type:            signalservice.EnvelopeCiphertext,
		SourceServiceID: sender,
		SourceDevice:    1,
		Timestamp:       ts,
		ServerTimestamp: ts + 5,
		Content:         padMessage(c.Marshal()),
	}
	return env.Marshal()
}

func TestOpenRequiresProtocol(t *testing.T) {
	fs := newFakeServer(t)
	_, err := fs.backend(nil).Open(context.Background())
	assert.True(t, signalerr.Is(err, signalerr.ConnectionFailed))
}

func TestOpenAuthAndQueueEmpty(t *testing.T) {
	fs := newFakeServer(t)
	b, stream, ws := open(t, fs, plainProtocol{})
	assert.Equal(t, b.Creds.AsBasic(), <-fs.auth)

	request(t, ws, 17, queueEmptyPath, nil)
	readAck(t, ws, 17)
	assert.Equal(t, session.QueueEmpty{}, next(t, stream))
}

func TestEnvelopeDataMessage(t *testing.T) {
	fs := newFakeServer(t)
	_, stream, ws := open(t, fs, plainProtocol{})

	c := &signalservice.Content{DataMessage: &signalservice.DataMessage{Body: "hello", Timestamp: 100}}
	request(t, ws, 1, envelopePath, envelope(bobACI.String(), 100, c))
	readAck(t, ws, 1)

	r, ok := next(t, stream).(session.ContentReceived)
	require.True(t, ok)
	assert.Equal(t, bobACI.String(), r.Content.Sender)
	assert.Equal(t, uint32(1), r.Content.SenderDevice)
	assert.Equal(t, uint64(105), r.Content.ServerTimestamp)
	require.NotNil(t, r.Content.Data)
	assert.Equal(t, "hello", r.Content.Data.Body)
}

func TestServerReceipt(t *testing.T) {
	fs := newFakeServer(t)
	_, stream, ws := open(t, fs, plainProtocol{})

	env := &signalservice.Envelope{Type: signalservice.EnvelopeReceipt, SourceServiceID: bobACI.String(), Timestamp: 55}
	request(t, ws, 2, envelopePath, env.Marshal())
	readAck(t, ws, 2)

	r := next(t, stream).(session.ContentReceived)
	require.NotNil(t, r.Content.Receipt)
	assert.Equal(t, []uint64{55}, r.Content.Receipt.Timestamps)
	assert.Equal(t, signalservice.ReceiptDelivery, r.Content.Receipt.Type)
}

func TestContactsSyncAndFetch(t *testing.T) {
	fs := newFakeServer(t)
	b, stream, ws := open(t, fs, plainProtocol{})

	list, err := b.FetchContacts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	key := make([]byte, 64)
	crypto.RandBytes(key)
	ct, err := crypto.AesEncrypt(key[:32], []byte("carol"))
	require.NoError(t, err)
	blob := crypto.AppendMAC(key[32:], ct)
	digest := sha256.Sum256(blob)
	fs.mu.Lock()
	fs.cdn["contacts-key"] = blob
	fs.mu.Unlock()

	c := &signalservice.Content{SyncMessage: &signalservice.SyncMessage{Contacts: &signalservice.SyncMessageContacts{
		Blob: &signalservice.AttachmentPointer{CdnKey: "contacts-key", CdnNumber: 3, Key: key, Digest: digest[:], Size: 5},
	}}}
	request(t, ws, 3, envelopePath, envelope(selfACI.String(), 1, c))
	readAck(t, ws, 3)
	assert.Equal(t, session.ContactsSynced{}, next(t, stream))

	list, err = b.FetchContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "carol", list[0].UUID)
}

func TestSyncTranscript(t *testing.T) {
	fs := newFakeServer(t)
	_, stream, ws := open(t, fs, plainProtocol{})

	c := &signalservice.Content{SyncMessage: &signalservice.SyncMessage{Sent: &signalservice.SyncMessageSent{
		DestinationServiceID: bobACI.String(),
		Timestamp:            9,
		Message:              &signalservice.DataMessage{Body: "from my phone"},
	}}}
	request(t, ws, 4, envelopePath, envelope(selfACI.String(), 9, c))
	readAck(t, ws, 4)

	r := next(t, stream).(session.ContentReceived)
	require.NotNil(t, r.Content.SyncSent)
	assert.Equal(t, "from my phone", r.Content.SyncSent.Message.Body)
}

func TestAbruptCloseFailsStream(t *testing.T) {
	fs := newFakeServer(t)
	_, stream, ws := open(t, fs, plainProtocol{})
	ws.UnderlyingConn().Close()

	_, ok := next(t, stream).(session.StreamFailed)
	assert.True(t, ok)
	_, more := <-stream
	assert.False(t, more)
}

func TestCloseEndsStream(t *testing.T) {
	fs := newFakeServer(t)
	b, stream, _ := open(t, fs, plainProtocol{})
	require.NoError(t, b.Close())

	select {
	case r, more := <-stream:
		assert.False(t, more, "unexpected %T", r)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}

func TestSendDirect(t *testing.T) {
	fs := newFakeServer(t)
	b, _, _ := open(t, fs, plainProtocol{})

	err := b.SendDirect(context.Background(), bobACI, &signalservice.DataMessage{Body: "hi", Timestamp: 123})
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.puts, 1)
	put := fs.puts[0]
	assert.Equal(t, "/v1/messages/"+bobACI.String(), put.path)
	assert.Equal(t, selfACI.String()+".2", put.user)
	assert.Equal(t, bobACI.String(), put.body.Destination)
	assert.Equal(t, uint64(123), put.body.Timestamp)
	require.Len(t, put.body.Messages, 1)

	padded, err := base64.StdEncoding.DecodeString(put.body.Messages[0].Content)
	require.NoError(t, err)
	assert.Zero(t, len(padded)%160)
	c := &signalservice.Content{}
	require.NoError(t, c.Unmarshal(stripPadding(padded)))
	assert.Equal(t, "hi", c.DataMessage.Body)
}

func TestSendDirectErrors(t *testing.T) {
	fs := newFakeServer(t)
	b, _, _ := open(t, fs, plainProtocol{})

	for status, want := range map[int]string{
		http.StatusConflict:            "mismatched devices",
		http.StatusTooManyRequests:     "rate limited",
		http.StatusInternalServerError: "status code 500",
	} {
		fs.mu.Lock()
		fs.status = status
		fs.mu.Unlock()
		err := b.SendDirect(context.Background(), bobACI, &signalservice.DataMessage{Body: "x"})
		assert.True(t, signalerr.Is(err, signalerr.SendFailed), "status %d", status)
		assert.Contains(t, err.Error(), want)
	}
}

func TestSendGroupSkipsSelf(t *testing.T) {
	fs := newFakeServer(t)
	carol := uuid.FromStringOrNil("33333333-3333-3333-3333-333333333333")
	b, _, _ := open(t, fs, plainProtocol{members: []uuid.UUID{selfACI, bobACI, carol}})

	err := b.SendGroup(context.Background(), []byte{1, 2}, &signalservice.DataMessage{Body: "all"})
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.puts, 2)
	assert.Equal(t, "/v1/messages/"+bobACI.String(), fs.puts[0].path)
	assert.Equal(t, "/v1/messages/"+carol.String(), fs.puts[1].path)
}

func TestPadding(t *testing.T) {
	for _, n := range []int{0, 1, 159, 160, 400} {
		msg := make([]byte, n)
		for i := range msg {
			msg[i] = 0x41
		}
		padded := padMessage(msg)
		assert.Zero(t, len(padded)%160)
		assert.Greater(t, len(padded), n)
		assert.Equal(t, msg, stripPadding(padded))
	}
}

func TestCloseBeforeOpen(t *testing.T) {
	b := &Backend{}
	assert.Equal(t, ErrNotListening, b.Close())
}
