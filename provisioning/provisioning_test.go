package provisioning

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-golang/siglink/axolotl"
	signalservice "github.com/signal-golang/siglink/protobuf"
	"github.com/signal-golang/siglink/signalerr"
)

const testAddress = "4f2a9c1e-7d3b-4c5a-9e8f-1a2b3c4d5e6f"

func testMessage() *signalservice.ProvisionMessage {
	aci := axolotl.GenerateIdentityKeyPair()
	pni := axolotl.GenerateIdentityKeyPair()
	return &signalservice.ProvisionMessage{
		AciIdentityKeyPublic:  aci.PublicKey.Serialize(),
		AciIdentityKeyPrivate: aci.PrivateKey.Key()[:],
		PniIdentityKeyPublic:  pni.PublicKey.Serialize(),
		PniIdentityKeyPrivate: pni.PrivateKey.Key()[:],
		Aci:                   "9d0652a3-dcc3-4d11-975f-74d61598733f",
		Pni:                   "PNI:0b7a4e1c-2f7d-4a3b-8f1e-6c5d4b3a2f10",
		Number:                "+15550001111",
		ProvisioningCode:      "123456",
		ProfileKey:            make([]byte, 32),
		EphemeralBackupKey:    []byte{1, 2, 3, 4},
		MasterKey:             []byte{5, 6, 7, 8},
	}
}

func request(id uint64, verb, path string, body []byte) []byte {
	m := &signalservice.WebSocketMessage{
		Type:    signalservice.WebSocketMessageRequest,
		Request: &signalservice.WebSocketRequestMessage{Verb: verb, Path: path, Body: body, ID: id},
	}
	return m.Marshal()
}

func readAck(t *testing.T, c *websocket.Conn, id uint64) {
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	m := &signalservice.WebSocketMessage{}
	require.NoError(t, m.Unmarshal(data))
	require.NotNil(t, m.Response)
	assert.Equal(t, signalservice.WebSocketMessageResponse, m.Type)
	assert.Equal(t, id, m.Response.ID)
	assert.Equal(t, uint32(200), m.Response.Status)
	assert.Equal(t, "OK", m.Response.Message)
}

// fakePrimary plays the server and primary device side of the handshake.
// script receives the connection and the channel the link URL arrives on.
func fakePrimary(t *testing.T, script func(c *websocket.Conn)) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Signal-Desktop/7.0.0", r.Header.Get("X-Signal-Agent"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		script(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func addressBody() []byte {
	return (&signalservice.ProvisioningAddress{Address: testAddress}).Marshal()
}

func TestRunHandshake(t *testing.T) {
	pm := testMessage()
	urls := make(chan *url.URL, 1)

	wsURL := fakePrimary(t, func(c *websocket.Conn) {
		require.NoError(t, c.WriteMessage(websocket.BinaryMessage, request(1, "PUT", "/v1/address", addressBody())))
		readAck(t, c, 1)

		u := <-urls
		pub, err := base64.StdEncoding.DecodeString(u.Query().Get("pub_key"))
		require.NoError(t, err)
		theirs, err := axolotl.DecodePoint(pub)
		require.NoError(t, err)
		env, err := Encrypt(pm, theirs)
		require.NoError(t, err)

		require.NoError(t, c.WriteMessage(websocket.BinaryMessage, request(2, "PUT", "/v1/message", env.Marshal())))
		readAck(t, c, 2)
	})

	secrets := &Secrets{}
	calls := 0
	id, err := Run(context.Background(), Options{URL: wsURL, Secrets: secrets}, func(u *url.URL) {
		calls++
		urls <- u
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	assert.Equal(t, "+15550001111", id.Number)
	assert.Equal(t, "123456", id.ProvisioningCode)
	assert.Equal(t, pm.Aci, id.ACI)
	assert.Equal(t, pm.AciIdentityKeyPublic, id.ACIIdentity.PublicKey.Serialize())
	assert.Equal(t, pm.PniIdentityKeyPublic, id.PNIIdentity.PublicKey.Serialize())
	assert.True(t, id.Backup.HasBackupKey())

	got, ok := secrets.Take()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.EphemeralBackupKey)
	assert.Equal(t, []byte{5, 6, 7, 8}, got.MasterKey)
	_, ok = secrets.Take()
	assert.False(t, ok)
}

func TestRunUnknownRequest(t *testing.T) {
	wsURL := fakePrimary(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.BinaryMessage, request(7, "GET", "/v1/keepalive", nil))
		c.ReadMessage()
	})
	_, err := Run(context.Background(), Options{URL: wsURL}, nil)
	require.Error(t, err)
	assert.True(t, signalerr.Is(err, signalerr.ProtocolError))
}

func TestRunCloseBeforeMessage(t *testing.T) {
	wsURL := fakePrimary(t, func(c *websocket.Conn) {
		require.NoError(t, c.WriteMessage(websocket.BinaryMessage, request(1, "PUT", "/v1/address", addressBody())))
		readAck(t, c, 1)
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	called := false
	_, err := Run(context.Background(), Options{URL: wsURL}, func(*url.URL) { called = true })
	require.Error(t, err)
	assert.True(t, called)
	assert.True(t, signalerr.Is(err, signalerr.ProtocolError))
	assert.Contains(t, err.Error(), "provisioning incomplete")
}

func TestRunClearsStaleSecrets(t *testing.T) {
	wsURL := fakePrimary(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	secrets := &Secrets{}
	secrets.Put(BackupSecrets{EphemeralBackupKey: []byte{9}})
	_, err := Run(context.Background(), Options{URL: wsURL, Secrets: secrets}, nil)
	require.Error(t, err)
	assert.False(t, secrets.HasBackupKey())
}

func TestIdentityRequiresFields(t *testing.T) {
	pm := testMessage()
	pm.ProfileKey = nil
	_, err := identityFrom(pm)
	assert.True(t, signalerr.Is(err, signalerr.ProtocolError))
	assert.Contains(t, err.Error(), "profile key")

	pm = testMessage()
	pm.Number = ""
	_, err = identityFrom(pm)
	assert.Contains(t, err.Error(), "phone number")

	pm = testMessage()
	pm.EphemeralBackupKey = nil
	id, err := identityFrom(pm)
	require.NoError(t, err)
	assert.False(t, id.Backup.HasBackupKey())
}

func TestCipherRoundTrip(t *testing.T) {
	kp := axolotl.NewECKeyPair()
	c := NewCipher(kp)
	pm := testMessage()
	env, err := Encrypt(pm, kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, byte(1), env.Body[0])

	got, err := c.Decrypt(env)
	require.NoError(t, err)
	assert.Equal(t, pm.Number, got.Number)
	assert.Equal(t, pm.EphemeralBackupKey, got.EphemeralBackupKey)
}

func TestCipherRejectsTampering(t *testing.T) {
	kp := axolotl.NewECKeyPair()
	c := NewCipher(kp)
	env, err := Encrypt(testMessage(), kp.PublicKey)
	require.NoError(t, err)

	env.Body[20] ^= 0x01
	_, err = c.Decrypt(env)
	assert.Equal(t, ErrBadMAC, err)

	env.Body[0] = 2
	_, err = c.Decrypt(env)
	assert.Equal(t, ErrBadVersion, err)

	env.Body = env.Body[:10]
	_, err = c.Decrypt(env)
	assert.Equal(t, ErrTooShort, err)
}

func TestCipherWrongRecipient(t *testing.T) {
	env, err := Encrypt(testMessage(), axolotl.NewECKeyPair().PublicKey)
	require.NoError(t, err)
	_, err = NewCipher(axolotl.NewECKeyPair()).Decrypt(env)
	assert.Equal(t, ErrBadMAC, err)
}

func TestURL(t *testing.T) {
	pub := append([]byte{0x05}, make([]byte, 32)...)
	u := URL(testAddress, pub)
	assert.Equal(t, "sgnl", u.Scheme)
	assert.Equal(t, "linkdevice", u.Host)
	assert.Equal(t, testAddress, u.Query().Get("uuid"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(pub), u.Query().Get("pub_key"))
	assert.Equal(t, "backup4,backup5", u.Query().Get("capabilities"))
	assert.True(t, strings.HasPrefix(u.String(), "sgnl://linkdevice?uuid="+testAddress))
}

func TestQR(t *testing.T) {
	uri := URL(testAddress, []byte{0x05, 1, 2, 3}).String()
	s, err := RenderQR(uri)
	require.NoError(t, err)
	assert.NotEmpty(t, s)

	path := filepath.Join(t.TempDir(), "link.png")
	require.NoError(t, WriteQRPNG(uri, path))
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, fi.Size() > 0)
}

func TestSecretsTakeOnce(t *testing.T) {
	s := &Secrets{}
	assert.False(t, s.HasBackupKey())
	s.Put(BackupSecrets{EphemeralBackupKey: []byte{1}})
	assert.True(t, s.HasBackupKey())
	_, ok := s.Take()
	assert.True(t, ok)
	assert.False(t, s.HasBackupKey())
}
