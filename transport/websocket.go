package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const handshakeTimeout = 30 * time.Second

// DialWebSocket opens a websocket to rawURL, validating the server against
// rootCAs.
func DialWebSocket(ctx context.Context, rawURL string, header http.Header, rootCAs *x509.CertPool) (*websocket.Conn, error) {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		TLSClientConfig: &tls.Config{
			RootCAs: rootCAs,
		},
	}

	log.Debugf("[siglink-ws] websocket connecting to %s", rawURL)

	ws, resp, err := d.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	log.Debugf("[siglink-ws] websocket connected successfully")

	return ws, nil
}
