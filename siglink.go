// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

// Package siglink links a new device to an existing account, imports the
// history the primary device transfers and runs the message session.
package siglink

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"os"
	"strings"
	"sync"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/attachments"
	"github.com/signal-golang/siglink/axolotl"
	"github.com/signal-golang/siglink/chat"
	"github.com/signal-golang/siglink/config"
	"github.com/signal-golang/siglink/events"
	"github.com/signal-golang/siglink/fingerprint"
	"github.com/signal-golang/siglink/provisioning"
	"github.com/signal-golang/siglink/registration"
	"github.com/signal-golang/siglink/rootCa"
	"github.com/signal-golang/siglink/session"
	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/store"
)

// Client owns everything a linked device needs: configuration, storage,
// the event bus and the running session.
type Client struct {
	// Protocol provides the session cryptography for Connect. Without it
	// the client can link and sync history but not exchange messages.
	Protocol chat.Protocol

	cfg     *config.Config
	rootCAs *x509.CertPool
	store   *store.DB
	bus     *events.Bus
	secrets *provisioning.Secrets

	mu     sync.Mutex
	handle *session.Handle
}

// setupLogging sets the logging verbosity level based on configuration
// and environment variables
func setupLogging(loglevel string) {
	if env := os.Getenv("SIGLINK_LOGLEVEL"); env != "" {
		loglevel = env
	}

	switch strings.ToUpper(loglevel) {
	case "DEBUG":
		log.SetLevel(log.DebugLevel)
	case "INFO":
		log.SetLevel(log.InfoLevel)
	case "WARN":
		log.SetLevel(log.WarnLevel)
	case "ERROR":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
}

// Setup initializes a client for cfg: logging, the trusted roots and the
// storage directory.
func Setup(cfg *config.Config) (*Client, error) {
	cfg.Defaults()
	config.ConfigFile = cfg
	setupLogging(cfg.LogLevel)

	pool, err := rootCa.NewPool(cfg.RootCA)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("[siglink] Cannot load root CA")
		return nil, err
	}
	db, err := store.Open(cfg.StorageDir)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "opening storage")
	}
	return &Client{
		cfg:     cfg,
		rootCAs: pool,
		store:   db,
		bus:     events.NewBus(),
		secrets: &provisioning.Secrets{},
	}, nil
}

// Events is the client's event stream. It has a single consumer.
func (c *Client) Events() <-chan events.Event {
	return c.bus.Events()
}

// Store gives access to the local database.
func (c *Client) Store() *store.DB {
	return c.store
}

// Config is the configuration the client was set up with.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Registration loads the stored registration. It fails with NotRegistered
// before the device was linked.
func (c *Client) Registration() (*registration.Result, error) {
	return registration.Load(c.store)
}

// IsRegistered reports whether a registration record exists.
func (c *Client) IsRegistered() bool {
	_, err := c.Registration()
	return err == nil
}

// IdentityFingerprint is this account's half of every safety number: six
// blocks of five digits derived from the ACI and its identity key.
func (c *Client) IdentityFingerprint() (string, error) {
	reg, err := c.Registration()
	if err != nil {
		return "", err
	}
	aci, err := reg.ACIUUID()
	if err != nil {
		return "", signalerr.Wrap(signalerr.ProtocolError, err, "account ACI")
	}
	fp := fingerprint.Compute(fingerprint.Identity{
		StableID: aci.Bytes(),
		Keys:     []*axolotl.ECPublicKey{reg.ACIIdentity.PublicKey},
	})
	return strings.Join(fingerprint.Numbers(fp), " "), nil
}

// Connect starts the message session. Incoming messages are stored and
// announced on the event bus.
func (c *Client) Connect(ctx context.Context) error {
	reg, err := c.Registration()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil && c.handle.Running() {
		return nil
	}
	backend := chat.New(c.cfg, reg, c.Protocol, c.rootCAs)
	h, err := session.Start(ctx, backend, c.bus, c.store)
	if err != nil {
		return err
	}
	c.handle = h
	return nil
}

// Disconnect stops the message session.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.mu.Unlock()
	return h.Close()
}

// Session returns the running session handle, or nil.
func (c *Client) Session() *session.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// SendMessage sends text to the account with the given ACI. It fails
// immediately when no session is running.
func (c *Client) SendMessage(ctx context.Context, recipient, text string) (string, error) {
	id, err := uuid.FromString(recipient)
	if err != nil {
		return "", signalerr.Wrap(signalerr.SendFailed, err, "invalid recipient UUID")
	}
	return c.Session().SendDirect(ctx, id, text)
}

// SendGroupMessage sends text to the group whose base64 master key is
// groupID.
func (c *Client) SendGroupMessage(ctx context.Context, groupID, text string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(groupID)
	if err != nil {
		return "", signalerr.Wrap(signalerr.SendFailed, err, "invalid group ID")
	}
	return c.Session().SendGroup(ctx, key, text)
}

// DownloadAttachment fetches and decrypts an attachment of a received
// message.
func (c *Client) DownloadAttachment(ctx context.Context, a *events.Attachment) (*attachments.Attachment, error) {
	cdns := attachments.CDNs{CDN2: c.cfg.CDN2, CDN3: c.cfg.CDN3, RootCAs: c.rootCAs}
	return cdns.Fetch(ctx, a)
}

// Close stops the session and releases the storage. Events not yet read
// are dropped and the event stream is closed.
func (c *Client) Close() error {
	c.Disconnect()
	c.bus.Stop()
	return c.store.Close()
}
