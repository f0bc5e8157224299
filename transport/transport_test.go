package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransporterSendsAuthAndAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "+15550001111", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "agent", r.Header.Get("X-Signal-Agent"))
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/devices/link", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "done")
	}))
	defer srv.Close()

	tr := NewHTTPTransporter(Options{BaseURL: srv.URL, User: "+15550001111", Password: "secret", UserAgent: "agent"})
	resp, err := tr.PutJSON(context.Background(), "/v1/devices/link", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.False(t, resp.IsError())
	b, err := resp.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "done", string(b))
}

func TestTransporterWithoutAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewHTTPTransporter(Options{BaseURL: srv.URL})
	resp, err := tr.Get(context.Background(), "/attachments/x")
	require.NoError(t, err)
	defer resp.Close()
	assert.True(t, resp.IsError())
	assert.Equal(t, "status code 404", resp.Error())
}

func TestTransporterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewHTTPTransporter(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := tr.Get(context.Background(), "/")
	assert.Error(t, err)
}

func TestAsBasic(t *testing.T) {
	a := &AuthCredentials{Username: "aci.2", Password: "pw"}
	assert.Equal(t, "Basic YWNpLjI6cHc=", a.AsBasic())
}

func TestDialWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Signal-Desktop/7.0.0", r.Header.Get("X-Signal-Agent"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.WriteMessage(websocket.BinaryMessage, []byte("hello"))
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("X-Signal-Agent", "Signal-Desktop/7.0.0")
	ws, err := DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), h, nil)
	require.NoError(t, err)
	defer ws.Close()
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))
}
