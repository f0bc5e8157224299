// Package provisioning runs the linking handshake on the provisioning
// websocket and yields the account material sent by the primary device.
package provisioning

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/axolotl"
	"github.com/signal-golang/siglink/config"
	signalservice "github.com/signal-golang/siglink/protobuf"
	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/transport"
)

const (
	addressPath = "/v1/address"
	messagePath = "/v1/message"

	writeWait = 10 * time.Second
)

// Options configures one provisioning attempt.
type Options struct {
	URL       string
	UserAgent string
	RootCAs   *x509.CertPool
	// Secrets receives the backup keys of this attempt, if set.
	Secrets *Secrets
}

// ProvisionedIdentity is the decrypted account material of a provisioning
// attempt. It is consumed once by registration.
type ProvisionedIdentity struct {
	Number              string
	ACI                 string
	PNI                 string
	ProvisioningCode    string
	ACIIdentity         *axolotl.IdentityKeyPair
	PNIIdentity         *axolotl.IdentityKeyPair
	ProfileKey          []byte
	ReadReceipts        bool
	UserAgent           string
	ProvisioningVersion uint32
	Backup              BackupSecrets
}

type result struct {
	url      *url.URL
	identity *ProvisionedIdentity
}

// Run dials the provisioning socket and services the server's requests until
// the provisioning message arrives. onURL is called once, as soon as the
// link URL is known and before anything else is read from the socket.
func Run(ctx context.Context, opts Options, onURL func(*url.URL)) (*ProvisionedIdentity, error) {
	if opts.URL == "" {
		opts.URL = config.ProvisioningWebsocketURL
	}
	if opts.Secrets != nil {
		opts.Secrets.Clear()
	}

	header := http.Header{}
	header.Set("X-Signal-Agent", config.SignalAgent)
	if opts.UserAgent != "" {
		header.Set("User-Agent", opts.UserAgent)
	}
	ws, err := transport.DialWebSocket(ctx, opts.URL, header, opts.RootCAs)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.NetworkError, err, "provisioning websocket")
	}
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-done:
		}
	}()

	log.Infoln("[siglink-provisioning] websocket connection established")

	cipher := NewCipher(axolotl.NewECKeyPair())
	urlSent := false

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, signalerr.Wrap(signalerr.ProtocolError, err, "provisioning incomplete")
			}
			return nil, signalerr.Wrap(signalerr.NetworkError, err, "provisioning websocket read")
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		msg := &signalservice.WebSocketMessage{}
		if err := msg.Unmarshal(data); err != nil {
			return nil, signalerr.Wrap(signalerr.ProtocolError, err, "bad websocket message")
		}
		if msg.Request == nil {
			continue
		}

		res, err := cipher.process(msg.Request)
		if err != nil {
			return nil, err
		}

		// The server does not send the next request before this ack.
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.BinaryMessage, signalservice.OKResponse(msg.Request.ID).Marshal()); err != nil {
			return nil, signalerr.Wrap(signalerr.NetworkError, err, "provisioning ack")
		}

		if res.url != nil {
			if !urlSent && onURL != nil {
				log.Infoln("[siglink-provisioning] provisioning URL available")
				onURL(res.url)
			}
			urlSent = true
			continue
		}

		id := res.identity
		if opts.Secrets != nil {
			opts.Secrets.Put(id.Backup)
		}
		log.WithFields(log.Fields{
			"backupKey": id.Backup.HasBackupKey(),
		}).Infoln("[siglink-provisioning] received provisioning message")

		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		return id, nil
	}
}

func (c *Cipher) process(req *signalservice.WebSocketRequestMessage) (*result, error) {
	switch {
	case req.Verb == http.MethodPut && req.Path == addressPath:
		addr := &signalservice.ProvisioningAddress{}
		if err := addr.Unmarshal(req.Body); err != nil {
			return nil, signalerr.Wrap(signalerr.ProtocolError, err, "bad provisioning address")
		}
		if addr.Address == "" {
			return nil, signalerr.New(signalerr.ProtocolError, "missing uuid in address")
		}
		return &result{url: URL(addr.Address, c.PublicKey())}, nil

	case req.Verb == http.MethodPut && req.Path == messagePath:
		env := &signalservice.ProvisionEnvelope{}
		if err := env.Unmarshal(req.Body); err != nil {
			return nil, signalerr.Wrap(signalerr.ProtocolError, err, "bad provision envelope")
		}
		pm, err := c.Decrypt(env)
		if err != nil {
			return nil, signalerr.Wrap(signalerr.ProtocolError, err, "decrypting provision message")
		}
		id, err := identityFrom(pm)
		if err != nil {
			return nil, err
		}
		return &result{identity: id}, nil
	}
	return nil, signalerr.New(signalerr.ProtocolError, "unknown request: %s %s", req.Verb, req.Path)
}

func identityFrom(pm *signalservice.ProvisionMessage) (*ProvisionedIdentity, error) {
	missing := func(what string) error {
		return signalerr.New(signalerr.ProtocolError, "missing %s", what)
	}
	switch {
	case pm.Number == "":
		return nil, missing("phone number")
	case pm.ProvisioningCode == "":
		return nil, missing("provisioning code")
	case len(pm.AciIdentityKeyPublic) == 0:
		return nil, missing("ACI public key")
	case len(pm.AciIdentityKeyPrivate) == 0:
		return nil, missing("ACI private key")
	case len(pm.PniIdentityKeyPublic) == 0:
		return nil, missing("PNI public key")
	case len(pm.PniIdentityKeyPrivate) == 0:
		return nil, missing("PNI private key")
	case len(pm.ProfileKey) == 0:
		return nil, missing("profile key")
	}
	aci, err := axolotl.NewIdentityKeyPair(pm.AciIdentityKeyPublic, pm.AciIdentityKeyPrivate)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.ProtocolError, err, "ACI identity key")
	}
	pni, err := axolotl.NewIdentityKeyPair(pm.PniIdentityKeyPublic, pm.PniIdentityKeyPrivate)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.ProtocolError, err, "PNI identity key")
	}
	return &ProvisionedIdentity{
		Number:              pm.Number,
		ACI:                 pm.Aci,
		PNI:                 pm.Pni,
		ProvisioningCode:    pm.ProvisioningCode,
		ACIIdentity:         aci,
		PNIIdentity:         pni,
		ProfileKey:          pm.ProfileKey,
		ReadReceipts:        pm.ReadReceipts,
		UserAgent:           pm.UserAgent,
		ProvisioningVersion: pm.ProvisioningVersion,
		Backup: BackupSecrets{
			EphemeralBackupKey: pm.EphemeralBackupKey,
			MasterKey:          pm.MasterKey,
			MediaRootBackupKey: pm.MediaRootBackupKey,
		},
	}, nil
}
